package events

import "github.com/dshills/plugbus/internal/event"

// Block event kinds.
const (
	// KindBlockBreak is raised before a player breaks a block.
	KindBlockBreak event.Kind = "block.break"

	// KindBlockPlace is raised before a player places a block.
	KindBlockPlace event.Kind = "block.place"
)

// BlockBreak is raised before a block is broken. Cancelling it keeps the
// block in place.
type BlockBreak struct {
	event.Cancellation

	Player    string
	Block     string
	At        Location
	DropItems bool
	Exp       int
}

// NewBlockBreak creates a break event that drops items and no experience.
func NewBlockBreak(player, block string, at Location) *BlockBreak {
	return &BlockBreak{Player: player, Block: block, At: at, DropItems: true}
}

// Kind implements event.Event.
func (*BlockBreak) Kind() event.Kind { return KindBlockBreak }

// Fields implements event.Mapped.
func (e *BlockBreak) Fields() map[string]any {
	return map[string]any{
		"player":     e.Player,
		"block":      e.Block,
		"at":         e.At.fields(),
		"drop_items": e.DropItems,
		"exp":        e.Exp,
	}
}

// ApplyFields implements event.Mapped. drop_items and exp are writable.
func (e *BlockBreak) ApplyFields(f map[string]any) error {
	return firstErr(
		fieldBool(f, "drop_items", &e.DropItems),
		fieldInt(f, "exp", &e.Exp),
	)
}

// BlockPlace is raised before a block is placed.
type BlockPlace struct {
	event.Cancellation

	Player string
	Block  string
	At     Location
}

// NewBlockPlace creates a place event.
func NewBlockPlace(player, block string, at Location) *BlockPlace {
	return &BlockPlace{Player: player, Block: block, At: at}
}

// Kind implements event.Event.
func (*BlockPlace) Kind() event.Kind { return KindBlockPlace }

// Fields implements event.Mapped.
func (e *BlockPlace) Fields() map[string]any {
	return map[string]any{"player": e.Player, "block": e.Block, "at": e.At.fields()}
}

// ApplyFields implements event.Mapped. Only block is writable.
func (e *BlockPlace) ApplyFields(f map[string]any) error {
	return fieldString(f, "block", &e.Block)
}
