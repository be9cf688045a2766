// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package roots tracks the root identifiers the hub has confirmed as added.
package roots

import "sort"

// Registry is the set of known root ids. It is populated when an add-root
// call succeeds and pruned when a remove-root call succeeds; shutdown uses
// it to ask extensions for deletion tasks.
//
// Registry does no locking of its own. It is confined to the owner
// executor shared by the lifecycle and removal coordinators.
type Registry struct {
	ids map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Add records id as known. It reports whether id was new.
func (r *Registry) Add(id string) bool {
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// Remove forgets id. It reports whether id was known.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	return true
}

func (r *Registry) Contains(id string) bool {
	_, ok := r.ids[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.ids)
}

// Snapshot returns the known ids in lexical order.
func (r *Registry) Snapshot() []string {
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset forgets every id. The lifecycle coordinator calls it once the hub
// has been torn down.
func (r *Registry) Reset() {
	clear(r.ids)
}
