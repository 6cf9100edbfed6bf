// Package api provides the Lua modules exposed to plugbus plugins.
//
// Each plugin runs in its own sandboxed Lua state. The host injects a
// fixed set of global modules into that state:
//
//   - events: register handlers, remove them and raise events
//   - log: structured logging tagged with the plugin name
//   - util: small string and table helpers
//
// # Architecture
//
// Each module implements the Module interface:
//
//	type Module interface {
//	    Name() string
//	    Register(L *lua.LState) error
//	}
//
// Modules are collected in a Registry and installed as globals with
// InjectAll. A Context carries what the modules bind to: the event bus,
// the owning plugin and its Lua state.
//
// # Handlers
//
// events.on wraps a Lua function in an event.Handler whose owner is the
// plugin name, so unloading a plugin removes all of its handlers with a
// single Bus.UnregisterOwner call. The handler receives an event table:
//
//	events.on("player.chat", function(ev)
//	    if ev.data.message:find("spam") then
//	        ev:cancel()
//	    end
//	    ev.data.message = ev.data.message:upper()
//	end, { priority = "high", ignore_cancelled = true })
//
// Changes to ev.data are written back to the event when the handler
// returns. Calling set_cancelled on an event that cannot be cancelled
// raises a Lua error naming event.ErrUnsupportedOperation. A handler may
// catch it with pcall; uncaught, it fails the handler.
//
// # Re-entrancy
//
// events.raise dispatches synchronously on the caller's context, so
// handlers of any plugin sharing the caller's Lua runtime run without
// re-acquiring the runtime lock.
package api
