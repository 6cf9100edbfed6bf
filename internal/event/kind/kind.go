package kind

import "strings"

// Kind identifies an event type using dot notation.
type Kind string

// Wildcard and separator constants.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator separates kind segments.
	Separator = "."
)

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}

// Segments returns the kind split by the separator.
func (k Kind) Segments() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), Separator)
}

// Namespace returns the first segment.
//
// Example: "player.chat" -> "player"
func (k Kind) Namespace() string {
	s := string(k)
	if idx := strings.Index(s, Separator); idx >= 0 {
		return s[:idx]
	}
	return s
}

// Base returns the last segment.
func (k Kind) Base() string {
	s := string(k)
	if idx := strings.LastIndex(s, Separator); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// Child appends a segment.
func (k Kind) Child(segment string) Kind {
	if k == "" {
		return Kind(segment)
	}
	return Kind(string(k) + Separator + segment)
}

// IsPattern reports whether the kind contains a wildcard segment.
func (k Kind) IsPattern() bool {
	return strings.Contains(string(k), WildcardSingle)
}

// IsValid reports whether k can name an event type.
// A valid kind is non-empty, has no empty segments, no whitespace
// and no wildcards.
func (k Kind) IsValid() bool {
	if k == "" || k.IsPattern() {
		return false
	}
	return validSegments(k.Segments())
}

// IsValidPattern reports whether k is usable as a match pattern.
func (k Kind) IsValidPattern() bool {
	if k == "" {
		return false
	}
	return validSegments(k.Segments())
}

func validSegments(segs []string) bool {
	for _, seg := range segs {
		if seg == "" || strings.ContainsAny(seg, " \t\r\n") {
			return false
		}
	}
	return true
}

// Matches reports whether k matches pattern.
func (k Kind) Matches(pattern Kind) bool {
	return matchSegments(k.Segments(), pattern.Segments())
}

// Match is Matches with the arguments in pattern-first order.
func Match(pattern, k Kind) bool {
	return k.Matches(pattern)
}

func matchSegments(kind, pattern []string) bool {
	ki, pi := 0, 0

	for pi < len(pattern) {
		if pattern[pi] == WildcardMulti {
			for ki <= len(kind) {
				if matchSegments(kind[ki:], pattern[pi+1:]) {
					return true
				}
				ki++
			}
			return false
		}

		if ki >= len(kind) {
			return false
		}
		if pattern[pi] != WildcardSingle && pattern[pi] != kind[ki] {
			return false
		}
		ki++
		pi++
	}

	return ki == len(kind)
}

// Join joins segments into a kind.
func Join(segments ...string) Kind {
	return Kind(strings.Join(segments, Separator))
}
