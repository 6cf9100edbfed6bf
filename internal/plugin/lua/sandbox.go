package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// removedGlobals can load code from disk or strings.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
}

func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func installSandbox(L *lua.LState, print func(string)) {
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	if print != nil {
		L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
			n := L.GetTop()
			parts := make([]string, 0, n)
			for i := 1; i <= n; i++ {
				parts = append(parts, L.ToStringMeta(L.Get(i)).String())
			}
			print(strings.Join(parts, "\t"))
			return 0
		}))
	}
}
