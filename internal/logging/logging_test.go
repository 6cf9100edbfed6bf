package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/plugbus/internal/config"
)

func TestNew_TextToStderr(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Log
	cfg.Level = "warn"

	l, err := New(cfg, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Info("hidden")
	l.Warn("shown", "plugin", "chat-guard")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "plugin=chat-guard")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Log
	cfg.Format = config.FormatJSON
	cfg.Level = "debug"

	l, err := New(cfg, &buf)
	require.NoError(t, err)
	l.Debug("dispatch", "kind", "player.chat")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "player.chat", rec["kind"])
}

func TestNew_File(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Log
	cfg.File = filepath.Join(t.TempDir(), "logs", "plugbus.log")

	l, err := New(cfg, &buf)
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Close())

	assert.Zero(t, buf.Len())
	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "msg=\"to file\""))
}

func TestNew_BadLevel(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "chatty"
	_, err := New(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}
