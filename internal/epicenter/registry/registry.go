// Package registry holds the ordered, append-only collection of erased
// listeners shared by the dispatch engines. It does no locking of its own:
// each engine guards its Registry with the primitive that fits its
// scheduling model.
package registry

import (
	"fmt"
	"iter"
	"reflect"

	"epicenter/internal/epicenter"
)

// Registry is an insertion-ordered list of listener entries plus a poison
// flag set when a listener panics while the owning engine holds its lock.
type Registry struct {
	entries  []epicenter.Entry
	poisoned bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Append adds entry at the end of the registry.
func (r *Registry) Append(entry epicenter.Entry) error {
	if !entry.Valid() {
		return fmt.Errorf("%w: entry was not built by epicenter.NewEntry", epicenter.ErrNilListener)
	}

	r.entries = append(r.entries, entry)
	return nil
}

// Has reports whether any entry listens for event.
func (r *Registry) Has(event reflect.Type) bool {
	for _, e := range r.entries {
		if e.Matches(event) {
			return true
		}
	}

	return false
}

// Matching yields the entries registered for event, in registration order.
func (r *Registry) Matching(event reflect.Type) iter.Seq[epicenter.Entry] {
	return func(yield func(epicenter.Entry) bool) {
		for _, e := range r.entries {
			if !e.Matches(event) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Count returns the number of entries registered for event.
func (r *Registry) Count(event reflect.Type) int {
	var n int
	for range r.Matching(event) {
		n++
	}

	return n
}

// Len returns the total number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Poison marks the registry unusable.
func (r *Registry) Poison() {
	r.poisoned = true
}

// Poisoned reports whether a previous listener panic left the registry
// unusable.
func (r *Registry) Poisoned() bool {
	return r.poisoned
}

// Guard returns epicenter.ErrLockPoisoned when the registry is poisoned.
func (r *Registry) Guard() error {
	if r.poisoned {
		return epicenter.ErrLockPoisoned
	}

	return nil
}
