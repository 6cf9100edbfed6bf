package event

import (
	"fmt"
	"strings"
)

// Priority is a handler tier. Tiers run in ascending order, so
// PriorityLowest handlers are called first and PriorityMonitor handlers
// see the final outcome.
type Priority int

const (
	// PriorityLowest runs first.
	PriorityLowest Priority = iota

	// PriorityLow runs after lowest.
	PriorityLow

	// PriorityNormal is the default tier.
	PriorityNormal

	// PriorityHigh runs after normal.
	PriorityHigh

	// PriorityHighest has the final say over the outcome.
	PriorityHighest

	// PriorityMonitor observes the outcome and must not change it.
	PriorityMonitor
)

const priorityCount = int(PriorityMonitor) + 1

var priorityNames = [priorityCount]string{
	"lowest", "low", "normal", "high", "highest", "monitor",
}

// String returns the lower-case tier name.
func (p Priority) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// IsValid reports whether p is one of the six tiers.
func (p Priority) IsValid() bool {
	return p >= PriorityLowest && p <= PriorityMonitor
}

// ParsePriority parses a tier name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range priorityNames {
		if n == name {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Priorities returns every tier in dispatch order.
func Priorities() []Priority {
	out := make([]Priority, priorityCount)
	for i := range out {
		out[i] = Priority(i)
	}
	return out
}
