package api

import (
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// UtilModule implements the util API module: string and table helpers
// missing from the sandboxed standard library.
type UtilModule struct{}

// NewUtilModule creates a util module.
func NewUtilModule() *UtilModule {
	return &UtilModule{}
}

// Name returns the module name.
func (m *UtilModule) Name() string {
	return "util"
}

// Register installs the module into the Lua state.
func (m *UtilModule) Register(L *lua.LState) error {
	L.SetGlobal(m.Name(), L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"split":       m.split,
		"trim":        m.trim,
		"starts_with": m.startsWith,
		"ends_with":   m.endsWith,
		"contains":    m.contains,
		"join":        m.join,
		"keys":        m.keys,
	}))
	return nil
}

// split(str, sep) -> {parts}
func (m *UtilModule) split(L *lua.LState) int {
	parts := strings.Split(L.CheckString(1), L.CheckString(2))
	t := L.CreateTable(len(parts), 0)
	for i, part := range parts {
		t.RawSetInt(i+1, lua.LString(part))
	}
	L.Push(t)
	return 1
}

func (m *UtilModule) trim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func (m *UtilModule) startsWith(L *lua.LState) int {
	L.Push(lua.LBool(strings.HasPrefix(L.CheckString(1), L.CheckString(2))))
	return 1
}

func (m *UtilModule) endsWith(L *lua.LState) int {
	L.Push(lua.LBool(strings.HasSuffix(L.CheckString(1), L.CheckString(2))))
	return 1
}

// contains(str, substr) -> bool, plain text match
func (m *UtilModule) contains(L *lua.LState) int {
	L.Push(lua.LBool(strings.Contains(L.CheckString(1), L.CheckString(2))))
	return 1
}

// join({parts}, sep) -> string
func (m *UtilModule) join(L *lua.LState) int {
	t := L.CheckTable(1)
	sep := L.OptString(2, "")

	parts := make([]string, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		parts = append(parts, lua.LVAsString(t.RawGetInt(i)))
	}
	L.Push(lua.LString(strings.Join(parts, sep)))
	return 1
}

// keys(tbl) -> {key...}, string keys sorted
func (m *UtilModule) keys(L *lua.LState) int {
	t := L.CheckTable(1)

	var keys []string
	t.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			keys = append(keys, string(s))
		}
	})
	sort.Strings(keys)

	out := L.CreateTable(len(keys), 0)
	for i, k := range keys {
		out.RawSetInt(i+1, lua.LString(k))
	}
	L.Push(out)
	return 1
}
