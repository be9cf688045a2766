// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package confirm provides the confirmation collaborator asked before a
// root without a deletion task is removed.
package confirm

import (
	"fmt"
	"strings"
)

// Confirmer asks the user to confirm message. It is called synchronously
// from the owner executor and must return promptly; headless deployments
// use a Static policy.
type Confirmer interface {
	Confirm(message string) bool
}

// Static answers every confirmation with the same decision.
type Static bool

func (s Static) Confirm(string) bool { return bool(s) }

// Func adapts a function to Confirmer.
type Func func(message string) bool

func (f Func) Confirm(message string) bool { return f(message) }

// Policy names accepted by FromPolicy.
const (
	PolicyAlways = "always"
	PolicyNever  = "never"
)

// FromPolicy maps a configured policy name to a headless Confirmer.
func FromPolicy(policy string) (Confirmer, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case PolicyAlways, "yes":
		return Static(true), nil
	case PolicyNever, "no", "":
		return Static(false), nil
	default:
		return nil, fmt.Errorf("unknown confirm policy %q (supported: %s, %s)", policy, PolicyAlways, PolicyNever)
	}
}
