package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugbus/internal/event"
	"github.com/dshills/plugbus/internal/event/events"
	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

// EventsModule implements the events API module.
type EventsModule struct {
	ctx *Context

	mu   sync.Mutex
	regs map[string]*event.Registration
}

// NewEventsModule creates an events module bound to ctx.
func NewEventsModule(ctx *Context) *EventsModule {
	return &EventsModule{
		ctx:  ctx,
		regs: make(map[string]*event.Registration),
	}
}

// Name returns the module name.
func (m *EventsModule) Name() string {
	return "events"
}

// Register installs the module into the Lua state.
func (m *EventsModule) Register(L *lua.LState) error {
	if m.ctx == nil || m.ctx.Bus == nil || m.ctx.State == nil {
		return errors.New("events module needs a bus and a state")
	}

	mod := L.NewTable()
	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "once", L.NewFunction(m.once))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "raise", L.NewFunction(m.raise))
	L.SetField(mod, "kinds", L.NewFunction(m.kinds))

	L.SetGlobal(m.Name(), mod)
	return nil
}

// Registrations returns the number of live registrations made through
// the module.
func (m *EventsModule) Registrations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

// Cleanup removes every registration made through the module and
// returns how many were removed.
func (m *EventsModule) Cleanup() int {
	m.mu.Lock()
	regs := m.regs
	m.regs = make(map[string]*event.Registration)
	m.mu.Unlock()

	n := 0
	for _, reg := range regs {
		if m.ctx.Bus.Remove(reg) {
			n++
		}
	}
	return n
}

// on(kind, fn [, opts]) -> id
func (m *EventsModule) on(L *lua.LState) int {
	return m.subscribe(L, false)
}

// once(kind, fn [, opts]) -> id
// The handler is removed after its first invocation.
func (m *EventsModule) once(L *lua.LState) int {
	return m.subscribe(L, true)
}

func (m *EventsModule) subscribe(L *lua.LState, once bool) int {
	k := event.Kind(L.CheckString(1))
	fn := L.CheckFunction(2)
	p, ignoreCancelled := m.options(L, L.OptTable(3, nil))

	h := &luaHandler{module: m, fn: fn, once: once}
	reg, err := m.ctx.Bus.Register(k, h, p, ignoreCancelled, m.ctx.Owner)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	h.reg.Store(reg)

	m.mu.Lock()
	m.regs[reg.ID()] = reg
	m.mu.Unlock()

	L.Push(lua.LString(reg.ID()))
	return 1
}

// options reads { priority = "high", ignore_cancelled = true }.
func (m *EventsModule) options(L *lua.LState, opts *lua.LTable) (event.Priority, bool) {
	if opts == nil {
		return event.PriorityNormal, false
	}

	p := event.PriorityNormal
	switch v := opts.RawGetString("priority").(type) {
	case lua.LString:
		parsed, err := event.ParsePriority(string(v))
		if err != nil {
			L.ArgError(3, err.Error())
		}
		p = parsed
	case lua.LNumber:
		p = event.Priority(int(v))
		if !p.IsValid() {
			L.ArgError(3, fmt.Sprintf("%v: %d", event.ErrInvalidPriority, int(v)))
		}
	case *lua.LNilType:
	default:
		L.ArgError(3, "priority must be a string or number")
	}

	return p, lua.LVAsBool(opts.RawGetString("ignore_cancelled"))
}

// off(id) -> bool
func (m *EventsModule) off(L *lua.LState) int {
	id := L.CheckString(1)
	L.Push(lua.LBool(m.forget(id)))
	return 1
}

func (m *EventsModule) forget(id string) bool {
	m.mu.Lock()
	reg, ok := m.regs[id]
	delete(m.regs, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	return m.ctx.Bus.Remove(reg)
}

// raise(kind [, data [, cancellable]]) -> report
func (m *EventsModule) raise(L *lua.LState) int {
	k := event.Kind(L.CheckString(1))
	var fields map[string]any
	if t := L.OptTable(2, nil); t != nil {
		fields = plua.TableToMap(t)
	}
	cancellable := L.OptBool(3, false)

	ev, err := events.Decode(k, fields, cancellable)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := m.ctx.Bus.Raise(ctx, ev)
	if err != nil {
		L.RaiseError("raise %s: %v", k, err)
		return 0
	}

	L.Push(reportTable(L, report))
	return 1
}

// kinds([pattern]) -> {kind...}
func (m *EventsModule) kinds(L *lua.LState) int {
	reg := m.ctx.Bus.Registry()

	var ks []event.Kind
	if pattern := L.OptString(1, ""); pattern != "" {
		ks = reg.Match(event.Kind(pattern))
	} else {
		ks = reg.Kinds()
	}

	t := L.CreateTable(len(ks), 0)
	for i, k := range ks {
		t.RawSetInt(i+1, lua.LString(k))
	}
	L.Push(t)
	return 1
}

func reportTable(L *lua.LState, r *event.Report) *lua.LTable {
	failures := L.CreateTable(len(r.Failures), 0)
	for i, f := range r.Failures {
		failures.RawSetInt(i+1, lua.LString(f.Error()))
	}

	t := L.NewTable()
	t.RawSetString("id", lua.LString(r.ID))
	t.RawSetString("kind", lua.LString(r.Kind))
	t.RawSetString("cancelled", lua.LBool(r.Cancelled))
	t.RawSetString("invoked", lua.LNumber(r.Invoked))
	t.RawSetString("skipped", lua.LNumber(r.Skipped))
	t.RawSetString("failures", failures)
	t.RawSetString("data", plua.MapToTable(L, fieldsOf(r.Event)))
	return t
}

func fieldsOf(ev event.Event) map[string]any {
	if m, ok := ev.(event.Mapped); ok {
		return m.Fields()
	}
	return nil
}

// luaHandler adapts a Lua function to event.Handler.
type luaHandler struct {
	module *EventsModule
	fn     *lua.LFunction
	once   bool

	fired atomic.Bool
	reg   atomic.Pointer[event.Registration]
}

// Handle implements event.Handler.
func (h *luaHandler) Handle(ctx context.Context, ev event.Event) error {
	if h.once {
		if !h.fired.CompareAndSwap(false, true) {
			return nil
		}
		if reg := h.reg.Load(); reg != nil {
			defer h.module.forget(reg.ID())
		}
	}

	err := h.module.ctx.State.Do(ctx, func(L *lua.LState) error {
		return invoke(L, h.fn, ev)
	})
	if errors.Is(err, plua.ErrStateClosed) {
		return nil
	}
	return err
}

// invoke calls fn with the event table and writes data changes back.
func invoke(L *lua.LState, fn *lua.LFunction, ev event.Event) error {
	var unsupported error
	tbl := eventTable(L, ev, &unsupported)

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, tbl); err != nil {
		if unsupported != nil {
			return fmt.Errorf("%w: %v", unsupported, err)
		}
		return err
	}

	mapped, ok := ev.(event.Mapped)
	if !ok {
		return nil
	}
	data, ok := tbl.RawGetString("data").(*lua.LTable)
	if !ok {
		return nil
	}
	return mapped.ApplyFields(plua.TableToMap(data))
}

// eventTable builds the table handed to Lua handlers. The methods work
// with both ev.cancel() and ev:cancel() call styles.
func eventTable(L *lua.LState, ev event.Event, unsupported *error) *lua.LTable {
	tbl := L.NewTable()

	arg := func(L *lua.LState) lua.LValue {
		if L.Get(1) == tbl {
			return L.Get(2)
		}
		return L.Get(1)
	}
	set := func(L *lua.LState, v bool) {
		if err := event.SetCancelled(ev, v); err != nil {
			*unsupported = err
			L.RaiseError("%s", err.Error())
		}
	}

	tbl.RawSetString("kind", lua.LString(ev.Kind()))
	tbl.RawSetString("cancellable", lua.LBool(event.IsCancellable(ev)))
	tbl.RawSetString("data", plua.MapToTable(L, fieldsOf(ev)))
	tbl.RawSetString("cancel", L.NewFunction(func(L *lua.LState) int {
		set(L, true)
		return 0
	}))
	tbl.RawSetString("set_cancelled", L.NewFunction(func(L *lua.LState) int {
		set(L, lua.LVAsBool(arg(L)))
		return 0
	}))
	tbl.RawSetString("is_cancelled", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(event.IsCancelled(ev)))
		return 1
	}))
	return tbl
}
