package api

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

func TestLogModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	state := plua.NewState()
	defer state.Close()

	mod := NewLogModule(&Context{Owner: "greeter", Logger: logger})
	if err := state.Do(context.Background(), mod.Register); err != nil {
		t.Fatal(err)
	}

	err := state.DoString(context.Background(), `
		log.debug("hidden")
		log.info("hello", { player = "alex", count = 2 })
	`)
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	for _, want := range []string{`"msg":"hello"`, `"plugin":"greeter"`, `"player":"alex"`, `"count":2`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestLogModule_RequiresMessage(t *testing.T) {
	state := plua.NewState()
	defer state.Close()

	mod := NewLogModule(&Context{Owner: "x", Logger: quietLogger()})
	if err := state.Do(context.Background(), mod.Register); err != nil {
		t.Fatal(err)
	}
	if err := state.DoString(context.Background(), `log.warn()`); err == nil {
		t.Error("expected an error for a missing message")
	}
}
