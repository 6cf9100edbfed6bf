package lua

import (
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestToGo(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	if err := L.DoString(`
		seq = {"a", "b", "c"}
		rec = {name = "alex", level = 3, ratio = 0.5, ok = true, nested = {x = 1}}
		empty = {}
	`); err != nil {
		t.Fatal(err)
	}

	seq, ok := ToGo(L.GetGlobal("seq")).([]any)
	if !ok || len(seq) != 3 || seq[2] != "c" {
		t.Errorf("ToGo(seq) = %#v", ToGo(L.GetGlobal("seq")))
	}

	rec, ok := ToGo(L.GetGlobal("rec")).(map[string]any)
	if !ok {
		t.Fatalf("ToGo(rec) = %T", ToGo(L.GetGlobal("rec")))
	}
	if rec["name"] != "alex" || rec["level"] != int64(3) || rec["ratio"] != 0.5 || rec["ok"] != true {
		t.Errorf("ToGo(rec) = %#v", rec)
	}
	if nested, ok := rec["nested"].(map[string]any); !ok || nested["x"] != int64(1) {
		t.Errorf("nested = %#v", rec["nested"])
	}

	if m := TableToMap(L.GetGlobal("empty").(*glua.LTable)); len(m) != 0 {
		t.Errorf("TableToMap(empty) = %#v", m)
	}
	if m := TableToMap(nil); m == nil {
		t.Error("TableToMap(nil) returned nil")
	}
}

func TestToGo_Cycle(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	if err := L.DoString(`c = {}; c.self = c`); err != nil {
		t.Fatal(err)
	}
	m := ToGo(L.GetGlobal("c")).(map[string]any)
	if m["self"] != nil {
		t.Errorf("cycle should become nil, got %#v", m["self"])
	}
}

type point struct {
	X, Y   int
	hidden string
}

func TestToLua(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tbl := MapToTable(L, map[string]any{
		"s":    "str",
		"n":    42,
		"f":    1.5,
		"b":    true,
		"list": []any{"x", 2},
		"strs": []string{"p", "q"},
		"pt":   point{X: 1, Y: 2, hidden: "no"},
		"ptr":  &point{X: 3},
		"nil":  nil,
	})

	back := TableToMap(tbl)
	if back["s"] != "str" || back["n"] != int64(42) || back["f"] != 1.5 || back["b"] != true {
		t.Errorf("round trip scalars = %#v", back)
	}
	if list := back["list"].([]any); list[0] != "x" || list[1] != int64(2) {
		t.Errorf("list = %#v", list)
	}
	pt := back["pt"].(map[string]any)
	if pt["X"] != int64(1) || pt["Y"] != int64(2) || pt["hidden"] != nil {
		t.Errorf("pt = %#v", pt)
	}
	if ptr := back["ptr"].(map[string]any); ptr["X"] != int64(3) {
		t.Errorf("ptr = %#v", ptr)
	}
	if _, ok := back["nil"]; ok {
		t.Error("nil values should not create table entries")
	}
}
