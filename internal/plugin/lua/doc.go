// Package lua hosts sandboxed gopher-lua states for plugins.
//
// gopher-lua's LState is not goroutine-safe. Every State runs under a
// Runtime lock and marks the context it hands to Lua, so Go functions
// called from Lua can call back into any State of the same Runtime on the
// same call chain without deadlocking. Plugin hosts share one Runtime: a
// handler in one plugin may raise an event handled by another while a
// second goroutine does the reverse.
//
//	state.Do(ctx, func(L *lua.LState) error {
//	    // L.Context() carries the marker; Go code reached from here may
//	    // call state.Call(L.Context(), ...) again.
//	    return L.DoString(`events.raise("player.join", {player = "alex"})`)
//	})
//
// Only the base, table, string and math libraries are opened. File
// loading and require are removed.
package lua
