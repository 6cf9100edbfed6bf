package plugin

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ManifestFile, `
name: chat-guard
version: 1.2.0
description: Drops chat spam
author: alex
authors: [sam]
depend: [permissions]
softdepend: [essentials]
config:
  words: [spam, scam]
  limit: 3
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}

	tests := []struct {
		field string
		got   any
		want  any
	}{
		{"Name", m.Name, "chat-guard"},
		{"Version", m.Version, "1.2.0"},
		{"Authors", m.Authors, []string{"alex", "sam"}},
		{"Main", m.Main, DefaultMain},
		{"Depend", m.Depend, []string{"permissions"}},
		{"SoftDepend", m.SoftDepend, []string{"essentials"}},
		{"Config[words]", m.Config["words"], []any{"spam", "scam"}},
		{"Config[limit]", m.Config["limit"], 3},
		{"Dir", m.Dir(), dir},
		{"MainPath", m.MainPath(), filepath.Join(dir, DefaultMain)},
		{"String", m.String(), "chat-guard v1.2.0"},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(tt.got, tt.want) {
			t.Errorf("%s = %#v, want %#v", tt.field, tt.got, tt.want)
		}
	}
}

func TestParseManifest_Defaults(t *testing.T) {
	m, err := ParseManifest([]byte("name: tiny\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != "0.0.0" {
		t.Errorf("Version = %q, want 0.0.0", m.Version)
	}
	if m.Main != DefaultMain {
		t.Errorf("Main = %q, want %q", m.Main, DefaultMain)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"missing name", "version: 1.0.0", ErrMissingName},
		{"upper-case name", "name: Chat", ErrInvalidName},
		{"trailing hyphen", "name: chat-", ErrInvalidName},
		{"bad version", "name: chat\nversion: one", ErrInvalidVersion},
		{"main not lua", "name: chat\nmain: init.py", ErrInvalidMain},
		{"main escapes", "name: chat\nmain: ../evil.lua", ErrInvalidMain},
		{"main absolute", "name: chat\nmain: /tmp/evil.lua", ErrInvalidMain},
		{"self dependency", "name: chat\ndepend: [chat]", ErrSelfDependency},
		{"bad dependency", "name: chat\nsoftdepend: [Not_Valid]", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.yaml)); !errors.Is(err, tt.want) {
				t.Errorf("ParseManifest() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseManifest_BadYAML(t *testing.T) {
	if _, err := ParseManifest([]byte("name: [unterminated")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadManifest_NotFound(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), ManifestFile)); err == nil {
		t.Error("expected an error for a missing manifest")
	}
}

func TestManifest_Clone(t *testing.T) {
	m, err := ParseManifest([]byte("name: a\ndepend: [b]\nconfig:\n  k: v\n"))
	if err != nil {
		t.Fatal(err)
	}

	c := m.Clone()
	c.Depend[0] = "changed"
	c.Config["k"] = "changed"

	if m.Depend[0] != "b" {
		t.Errorf("original Depend changed to %q", m.Depend[0])
	}
	if m.Config["k"] != "v" {
		t.Errorf("original Config changed to %v", m.Config["k"])
	}
}
