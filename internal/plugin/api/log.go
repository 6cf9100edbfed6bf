package api

import (
	"context"
	"log/slog"
	"sort"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

// LogModule implements the log API module. Every record carries the
// plugin name.
type LogModule struct {
	logger *slog.Logger
}

// NewLogModule creates a log module bound to ctx.
func NewLogModule(ctx *Context) *LogModule {
	return &LogModule{
		logger: ctx.logger().With(slog.String("plugin", string(ctx.Owner))),
	}
}

// Name returns the module name.
func (m *LogModule) Name() string {
	return "log"
}

// Register installs the module into the Lua state.
func (m *LogModule) Register(L *lua.LState) error {
	mod := L.NewTable()
	L.SetField(mod, "debug", L.NewFunction(m.logAt(slog.LevelDebug)))
	L.SetField(mod, "info", L.NewFunction(m.logAt(slog.LevelInfo)))
	L.SetField(mod, "warn", L.NewFunction(m.logAt(slog.LevelWarn)))
	L.SetField(mod, "error", L.NewFunction(m.logAt(slog.LevelError)))

	L.SetGlobal(m.Name(), mod)
	return nil
}

// logAt returns log.<level>(msg [, fields]).
func (m *LogModule) logAt(level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		var attrs []slog.Attr
		if t := L.OptTable(2, nil); t != nil {
			fields := plua.TableToMap(t)
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, fields[k]))
			}
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		m.logger.LogAttrs(ctx, level, msg, attrs...)
		return 0
	}
}
