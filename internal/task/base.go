// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package task

import (
	"fmt"
	"sync"
)

// Base carries the bookkeeping every Task needs: state, listeners and
// warnings. Concrete tasks embed it and drive it with SetState.
type Base struct {
	mu          sync.Mutex
	description string
	state       State
	executed    bool
	err         error
	warnings    []string
	listeners   map[ListenerID]Listener
	order       []ListenerID
	nextID      ListenerID

	self Task
}

// NewBase returns bookkeeping for a task described by description.
// self is the outer task passed to listeners; nil means the Base itself.
func NewBase(description string, self Task) *Base {
	return &Base{description: description, self: self}
}

func (b *Base) Description() string {
	return b.description
}

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Warn records a warning for the coordinator to report.
func (b *Base) Warn(format string, args ...any) {
	b.mu.Lock()
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
	b.mu.Unlock()
}

func (b *Base) Warnings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.warnings))
	copy(out, b.warnings)
	return out
}

func (b *Base) AddListener(l Listener) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[ListenerID]Listener)
	}
	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	b.order = append(b.order, id)
	return id
}

func (b *Base) RemoveListener(id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[id]; !ok {
		return
	}
	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// begin marks the task as executed. It returns false on a second call.
func (b *Base) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.executed {
		b.warnings = append(b.warnings, ErrAlreadyExecuted.Error())
		return false
	}
	b.executed = true
	return true
}

// SetState moves the task to s and notifies listeners. Transitions out of
// a terminal state are ignored, so the terminal notification happens once.
func (b *Base) SetState(s State) bool {
	return b.transition(s, nil)
}

// Fail moves the task to StateError, remembering err.
func (b *Base) Fail(err error) bool {
	return b.transition(StateError, err)
}

func (b *Base) transition(s State, err error) bool {
	b.mu.Lock()
	old := b.state
	if old == s || old.IsTerminal() {
		b.mu.Unlock()
		return false
	}
	b.state = s
	if err != nil {
		b.err = err
	}
	listeners := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.Unlock()

	var self Task = b
	if b.self != nil {
		self = b.self
	}
	for _, l := range listeners {
		l(self, old, s)
	}
	return true
}

// Execute on a bare Base completes immediately.
func (b *Base) Execute() State {
	if b.begin() {
		b.SetState(StateCompleted)
	}
	return b.State()
}

var _ Task = (*Base)(nil)
