package event

import (
	"sort"
	"sync"

	"github.com/dshills/plugbus/internal/event/kind"
)

// Registry maps each kind to its HandlerList. Lists are created on first
// use and live as long as the registry.
//
// The registry also tracks which kinds each owner registered on, so
// UnregisterOwner only touches those lists.
type Registry struct {
	mu    sync.RWMutex
	lists map[Kind]*HandlerList

	idxMu  sync.Mutex
	owners map[Owner]map[Kind]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		lists:  make(map[Kind]*HandlerList),
		owners: make(map[Owner]map[Kind]struct{}),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// HandlerListFor returns the list for k from the process-wide registry.
func HandlerListFor(k Kind) *HandlerList {
	return defaultRegistry.HandlerListFor(k)
}

// HandlerListFor returns the list for k, creating it if needed. Repeated
// calls return the same list.
func (r *Registry) HandlerListFor(k Kind) *HandlerList {
	r.mu.RLock()
	l, ok := r.lists[k]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lists[k]; ok {
		return l
	}
	l = NewHandlerList(k)
	l.onRegister = r.track
	r.lists[k] = l
	return l
}

// Lookup returns the list for k without creating it.
func (r *Registry) Lookup(k Kind) (*HandlerList, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[k]
	return l, ok
}

func (r *Registry) track(owner Owner, k Kind) {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	kinds := r.owners[owner]
	if kinds == nil {
		kinds = make(map[Kind]struct{})
		r.owners[owner] = kinds
	}
	kinds[k] = struct{}{}
}

// UnregisterOwner removes every registration made by owner, on every
// kind, and returns how many were removed.
func (r *Registry) UnregisterOwner(owner Owner) int {
	r.idxMu.Lock()
	kinds := r.owners[owner]
	delete(r.owners, owner)
	r.idxMu.Unlock()

	removed := 0
	for k := range kinds {
		if l, ok := r.Lookup(k); ok {
			removed += l.UnregisterOwner(owner)
		}
	}
	return removed
}

// Unregister removes h from every list.
func (r *Registry) Unregister(h Handler) int {
	removed := 0
	for _, l := range r.allLists() {
		removed += l.Unregister(h)
	}
	return removed
}

// UnregisterAll empties every list. The lists themselves remain.
func (r *Registry) UnregisterAll() int {
	r.idxMu.Lock()
	clear(r.owners)
	r.idxMu.Unlock()

	removed := 0
	for _, l := range r.allLists() {
		removed += l.UnregisterAll()
	}
	return removed
}

func (r *Registry) allLists() []*HandlerList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*HandlerList, 0, len(r.lists))
	for _, l := range r.lists {
		out = append(out, l)
	}
	return out
}

// Kinds returns every kind that has a list, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	out := make([]Kind, 0, len(r.lists))
	for k := range r.lists {
		out = append(out, k)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Match returns the sorted kinds that match pattern.
func (r *Registry) Match(pattern Kind) []Kind {
	var out []Kind
	for _, k := range r.Kinds() {
		if kind.Match(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

// Owners returns the owners that currently hold at least one
// registration, sorted.
func (r *Registry) Owners() []Owner {
	r.idxMu.Lock()
	candidates := make(map[Owner][]Kind, len(r.owners))
	for owner, kinds := range r.owners {
		for k := range kinds {
			candidates[owner] = append(candidates[owner], k)
		}
	}
	r.idxMu.Unlock()

	var out []Owner
	for owner, kinds := range candidates {
		for _, k := range kinds {
			if l, ok := r.Lookup(k); ok && len(l.ByOwner(owner)) > 0 {
				out = append(out, owner)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the total number of registrations.
func (r *Registry) Count() int {
	n := 0
	for _, l := range r.allLists() {
		n += l.Len()
	}
	return n
}
