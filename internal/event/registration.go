package event

import "github.com/google/uuid"

// Registration is one handler subscribed to one kind.
type Registration struct {
	id              string
	kind            Kind
	handler         Handler
	priority        Priority
	ignoreCancelled bool
	owner           Owner
	seq             uint64
}

func newRegistration(k Kind, h Handler, p Priority, ignoreCancelled bool, owner Owner, seq uint64) *Registration {
	return &Registration{
		id:              uuid.New().String(),
		kind:            k,
		handler:         h,
		priority:        p,
		ignoreCancelled: ignoreCancelled,
		owner:           owner,
		seq:             seq,
	}
}

// ID returns the unique registration ID.
func (r *Registration) ID() string { return r.id }

// Kind returns the kind the handler is registered for.
func (r *Registration) Kind() Kind { return r.kind }

// Handler returns the registered handler.
func (r *Registration) Handler() Handler { return r.handler }

// Priority returns the handler tier.
func (r *Registration) Priority() Priority { return r.priority }

// IgnoreCancelled reports whether the handler is skipped for cancelled
// events.
func (r *Registration) IgnoreCancelled() bool { return r.ignoreCancelled }

// Owner returns the registering owner.
func (r *Registration) Owner() Owner { return r.owner }

// skips reports whether the registration must not be called for ev in
// its current state.
func (r *Registration) skips(ev Event) bool {
	return r.ignoreCancelled && IsCancelled(ev)
}
