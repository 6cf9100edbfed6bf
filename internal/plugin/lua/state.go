package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single Do call.
const DefaultExecutionTimeout = 5 * time.Second

// Runtime serializes the states created with it. Only one of them runs
// Lua at a time; a call chain that already holds the runtime enters any
// of its states directly.
type Runtime struct {
	mu sync.Mutex
}

// NewRuntime creates a runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// State is a sandboxed Lua state. Calls into it hold its runtime's lock.
type State struct {
	L *lua.LState

	rt     *Runtime
	closed atomic.Bool

	executionTimeout time.Duration
	print            func(string)
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the deadline applied to each top-level call.
// Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithRuntime runs the state under rt. States sharing a runtime may call
// into each other from handlers without lock ordering concerns. Without
// it each state gets a runtime of its own.
func WithRuntime(rt *Runtime) StateOption {
	return func(s *State) {
		s.rt = rt
	}
}

// WithPrint redirects Lua print output.
func WithPrint(fn func(line string)) StateOption {
	return func(s *State) {
		s.print = fn
	}
}

// NewState creates a sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	s := &State{executionTimeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.rt == nil {
		s.rt = NewRuntime()
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s.L, s.print)
	return s
}

type ownerKey struct{}

// holders lists the states entered by the calls enclosing a context,
// innermost first.
type holders struct {
	state *State
	outer *holders
}

// Owns reports whether ctx was produced by a call on s. Calls on other
// states in between do not hide an outer call.
func (s *State) Owns(ctx context.Context) bool {
	return s.find(ctx, func(h *State) bool { return h == s })
}

// holdsRuntime reports whether ctx was produced by a call on any state of
// s's runtime, meaning the caller already holds the runtime lock.
func (s *State) holdsRuntime(ctx context.Context) bool {
	return s.find(ctx, func(h *State) bool { return h.rt == s.rt })
}

func (s *State) find(ctx context.Context, match func(*State) bool) bool {
	if ctx == nil {
		return false
	}
	h, _ := ctx.Value(ownerKey{}).(*holders)
	for ; h != nil; h = h.outer {
		if match(h.state) {
			return true
		}
	}
	return false
}

// Do runs fn with exclusive access to the Lua state. If ctx comes from an
// enclosing Do on a state of the same runtime, the lock is already held
// and fn runs directly. Lua panics are returned as errors.
func (s *State) Do(ctx context.Context, fn func(L *lua.LState) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	held := s.holdsRuntime(ctx)
	if !held {
		s.rt.mu.Lock()
		defer s.rt.mu.Unlock()
	}
	if s.closed.Load() {
		return ErrStateClosed
	}

	if !s.Owns(ctx) {
		outer, _ := ctx.Value(ownerKey{}).(*holders)
		ctx = context.WithValue(ctx, ownerKey{}, &holders{state: s, outer: outer})
	}
	if !held && s.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}

	prev := s.L.Context()
	s.L.SetContext(ctx)
	defer func() {
		if prev != nil {
			s.L.SetContext(prev)
		} else {
			s.L.RemoveContext()
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	if err := fn(s.L); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
		return err
	}
	return nil
}

// DoString executes a chunk of Lua source.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.Do(ctx, func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.Do(ctx, func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// Call calls fn with args and returns its results.
func (s *State) Call(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.Do(ctx, func(L *lua.LState) error {
		var err error
		results, err = pcall(L, fn, args)
		return err
	})
	return results, err
}

// CallGlobal calls the global function name. It returns
// ErrFunctionNotFound if name is not a function.
func (s *State) CallGlobal(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.Do(ctx, func(L *lua.LState) error {
		fn, ok := L.GetGlobal(name).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
		}
		var err error
		results, err = pcall(L, fn, args)
		return err
	})
	return results, err
}

func pcall(L *lua.LState, fn *lua.LFunction, args []lua.LValue) ([]lua.LValue, error) {
	top := L.GetTop()
	L.Push(fn)
	for _, a := range args {
		L.Push(a)
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		L.SetTop(top)
		return nil, err
	}

	n := L.GetTop() - top
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = L.Get(top + i + 1)
	}
	L.SetTop(top)
	return results, nil
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	found := false
	_ = s.Do(context.Background(), func(L *lua.LState) error {
		_, found = L.GetGlobal(name).(*lua.LFunction)
		return nil
	})
	return found
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	_ = s.Do(context.Background(), func(L *lua.LState) error {
		L.SetGlobal(name, value)
		return nil
	})
}

// GetGlobal returns a global variable, or LNil if the state is closed.
func (s *State) GetGlobal(name string) lua.LValue {
	v := lua.LValue(lua.LNil)
	_ = s.Do(context.Background(), func(L *lua.LState) error {
		v = L.GetGlobal(name)
		return nil
	})
	return v
}

// RegisterModule installs a table of Go functions as the global name.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	_ = s.Do(context.Background(), func(L *lua.LState) error {
		L.SetGlobal(name, L.SetFuncs(L.NewTable(), funcs))
		return nil
	})
}

// IsClosed reports whether Close was called.
func (s *State) IsClosed() bool {
	return s.closed.Load()
}

// Close releases the Lua state once no call is running on its runtime.
// Later calls return ErrStateClosed. Close must not be called from inside
// a call on the same runtime.
func (s *State) Close() error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if s.closed.Load() {
		return nil
	}
	s.L.Close()
	s.closed.Store(true)
	return nil
}

// Runtime returns the runtime the state runs under.
func (s *State) Runtime() *Runtime {
	return s.rt
}
