// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package confirm

import "sync/atomic"

// Switch is a Confirmer whose delegate can be replaced while the hub runs,
// e.g. when the configured policy is reloaded.
type Switch struct {
	current atomic.Pointer[Confirmer]
}

// NewSwitch returns a Switch delegating to initial.
func NewSwitch(initial Confirmer) *Switch {
	s := &Switch{}
	s.Set(initial)
	return s
}

// Set replaces the delegate. A nil delegate declines every confirmation.
func (s *Switch) Set(c Confirmer) {
	if c == nil {
		c = Static(false)
	}
	s.current.Store(&c)
}

// SetPolicy replaces the delegate with the headless Confirmer for policy.
func (s *Switch) SetPolicy(policy string) error {
	c, err := FromPolicy(policy)
	if err != nil {
		return err
	}
	s.Set(c)
	return nil
}

func (s *Switch) Confirm(message string) bool {
	return (*s.current.Load()).Confirm(message)
}
