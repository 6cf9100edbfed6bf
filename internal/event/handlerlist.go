package event

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// HandlerList holds the registrations for one kind, bucketed by tier.
//
// Writers take the list mutex and rebuild an immutable ordered slice;
// dispatch reads that slice without locking. A pass that is already
// running keeps the slice it started with, so registrations made or
// removed during a pass take effect on the next one.
type HandlerList struct {
	kind Kind

	mu      sync.Mutex
	buckets [priorityCount][]*Registration
	seq     uint64

	baked atomic.Pointer[[]*Registration]

	// onRegister is called after each successful registration.
	onRegister func(owner Owner, k Kind)
}

// NewHandlerList creates an empty list for k.
func NewHandlerList(k Kind) *HandlerList {
	l := &HandlerList{kind: k}
	empty := []*Registration{}
	l.baked.Store(&empty)
	return l
}

// Kind returns the kind this list serves.
func (l *HandlerList) Kind() Kind {
	return l.kind
}

// Register appends h to the bucket for p. It fails with
// ErrAlreadyRegistered if owner already registered h on this list.
func (l *HandlerList) Register(h Handler, p Priority, ignoreCancelled bool, owner Owner) (*Registration, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}

	l.mu.Lock()
	for _, bucket := range l.buckets {
		for _, r := range bucket {
			if r.owner == owner && sameHandler(r.handler, h) {
				l.mu.Unlock()
				return nil, fmt.Errorf("%w: owner %q on %s", ErrAlreadyRegistered, owner, l.kind)
			}
		}
	}

	l.seq++
	reg := newRegistration(l.kind, h, p, ignoreCancelled, owner, l.seq)
	l.buckets[p] = append(l.buckets[p], reg)
	l.bake()
	hook := l.onRegister
	l.mu.Unlock()

	if hook != nil {
		hook(owner, l.kind)
	}
	return reg, nil
}

// Unregister removes every registration of h, whatever its owner, and
// returns how many were removed.
func (l *HandlerList) Unregister(h Handler) int {
	if h == nil {
		return 0
	}
	return l.removeWhere(func(r *Registration) bool {
		return sameHandler(r.handler, h)
	})
}

// Remove removes a single registration. It returns false if reg is not
// in the list.
func (l *HandlerList) Remove(reg *Registration) bool {
	if reg == nil {
		return false
	}
	return l.removeWhere(func(r *Registration) bool {
		return r == reg
	}) > 0
}

// UnregisterOwner removes every registration made by owner.
func (l *HandlerList) UnregisterOwner(owner Owner) int {
	return l.removeWhere(func(r *Registration) bool {
		return r.owner == owner
	})
}

// UnregisterAll removes every registration.
func (l *HandlerList) UnregisterAll() int {
	return l.removeWhere(func(*Registration) bool { return true })
}

func (l *HandlerList) removeWhere(match func(*Registration) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for p, bucket := range l.buckets {
		kept := bucket[:0:0]
		for _, r := range bucket {
			if match(r) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) != len(bucket) {
			l.buckets[p] = kept
		}
	}
	if removed > 0 {
		l.bake()
	}
	return removed
}

// bake rebuilds the dispatch order. Caller must hold l.mu.
func (l *HandlerList) bake() {
	n := 0
	for _, bucket := range l.buckets {
		n += len(bucket)
	}
	order := make([]*Registration, 0, n)
	for _, bucket := range l.buckets {
		order = append(order, bucket...)
	}
	l.baked.Store(&order)
}

// snapshot returns the shared ordered slice. Callers must not modify it.
func (l *HandlerList) snapshot() []*Registration {
	return *l.baked.Load()
}

// Snapshot returns the registrations in dispatch order: tiers ascending,
// then registration order within a tier.
func (l *HandlerList) Snapshot() []*Registration {
	s := l.snapshot()
	out := make([]*Registration, len(s))
	copy(out, s)
	return out
}

// Len returns the number of registrations.
func (l *HandlerList) Len() int {
	return len(l.snapshot())
}

// ByOwner returns the registrations made by owner, in dispatch order.
func (l *HandlerList) ByOwner(owner Owner) []*Registration {
	var out []*Registration
	for _, r := range l.snapshot() {
		if r.owner == owner {
			out = append(out, r)
		}
	}
	return out
}
