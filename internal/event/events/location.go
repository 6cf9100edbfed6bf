package events

// Location is a point in a world.
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

func (l Location) fields() map[string]any {
	return map[string]any{
		"world": l.World,
		"x":     l.X,
		"y":     l.Y,
		"z":     l.Z,
	}
}

func (l *Location) apply(m map[string]any) error {
	return firstErr(
		fieldString(m, "world", &l.World),
		fieldFloat(m, "x", &l.X),
		fieldFloat(m, "y", &l.Y),
		fieldFloat(m, "z", &l.Z),
	)
}
