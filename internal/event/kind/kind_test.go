package kind

import "testing"

func TestKind_Segments(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected []string
	}{
		{Kind("player.move.teleport"), []string{"player", "move", "teleport"}},
		{Kind("block.break"), []string{"block", "break"}},
		{Kind("tick"), []string{"tick"}},
		{Kind(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got := tt.kind.Segments()
			if len(got) != len(tt.expected) {
				t.Fatalf("Kind.Segments() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Kind.Segments()[%d] = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestKind_NamespaceBaseChild(t *testing.T) {
	k := Kind("player.chat")
	if got := k.Namespace(); got != "player" {
		t.Errorf("Namespace() = %q, want %q", got, "player")
	}
	if got := k.Base(); got != "chat" {
		t.Errorf("Base() = %q, want %q", got, "chat")
	}
	if got := Kind("tick").Namespace(); got != "tick" {
		t.Errorf("Namespace() = %q, want %q", got, "tick")
	}
	if got := Kind("player").Child("quit"); got != "player.quit" {
		t.Errorf("Child() = %q, want %q", got, "player.quit")
	}
	if got := Kind("").Child("tick"); got != "tick" {
		t.Errorf("Child() = %q, want %q", got, "tick")
	}
	if got := Join("block", "place"); got != "block.place" {
		t.Errorf("Join() = %q, want %q", got, "block.place")
	}
}

func TestKind_IsValid(t *testing.T) {
	tests := []struct {
		kind  Kind
		valid bool
	}{
		{"player.join", true},
		{"tick", true},
		{"plugin.my-plugin.enabled", true},
		{"", false},
		{".player", false},
		{"player.", false},
		{"player..join", false},
		{"player.*", false},
		{"player join", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsValid(); got != tt.valid {
				t.Errorf("Kind(%q).IsValid() = %v, want %v", tt.kind, got, tt.valid)
			}
		})
	}

	if !Kind("player.**").IsValidPattern() {
		t.Error("expected player.** to be a valid pattern")
	}
	if Kind("player..*").IsValidPattern() {
		t.Error("expected player..* to be an invalid pattern")
	}
}

func TestKind_Matches(t *testing.T) {
	tests := []struct {
		kind    Kind
		pattern Kind
		match   bool
	}{
		{"player.join", "player.join", true},
		{"player.join", "player.*", true},
		{"player.move.teleport", "player.*", false},
		{"player.move.teleport", "player.**", true},
		{"player", "player.**", true},
		{"block.break", "*.break", true},
		{"block.break", "**", true},
		{"block.break", "player.*", false},
		{"block.break", "block.break.extra", false},
		{"a.b.c.d", "a.**.d", true},
		{"a.d", "a.**.d", true},
		{"a.b.c", "a.**.d", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"~"+string(tt.pattern), func(t *testing.T) {
			if got := tt.kind.Matches(tt.pattern); got != tt.match {
				t.Errorf("Kind(%q).Matches(%q) = %v, want %v", tt.kind, tt.pattern, got, tt.match)
			}
			if got := Match(tt.pattern, tt.kind); got != tt.match {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.kind, got, tt.match)
			}
		})
	}
}
