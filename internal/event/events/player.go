package events

import (
	"fmt"

	"github.com/dshills/plugbus/internal/event"
)

// Player event kinds.
const (
	// KindPlayerJoin is raised when a player connects.
	KindPlayerJoin event.Kind = "player.join"

	// KindPlayerQuit is raised when a player disconnects.
	KindPlayerQuit event.Kind = "player.quit"

	// KindPlayerChat is raised when a player sends a chat message.
	KindPlayerChat event.Kind = "player.chat"

	// KindPlayerMove is raised when a player changes position.
	KindPlayerMove event.Kind = "player.move"
)

// DefaultChatFormat renders player name then message.
const DefaultChatFormat = "<%s> %s"

// PlayerJoin is raised when a player connects. Handlers may change the
// join message; an empty message suppresses the broadcast.
type PlayerJoin struct {
	Player      string
	JoinMessage string
}

// NewPlayerJoin creates a join event with the default message.
func NewPlayerJoin(player string) *PlayerJoin {
	return &PlayerJoin{Player: player, JoinMessage: player + " joined the game"}
}

// Kind implements event.Event.
func (*PlayerJoin) Kind() event.Kind { return KindPlayerJoin }

// Fields implements event.Mapped.
func (e *PlayerJoin) Fields() map[string]any {
	return map[string]any{"player": e.Player, "join_message": e.JoinMessage}
}

// ApplyFields implements event.Mapped. Only join_message is writable.
func (e *PlayerJoin) ApplyFields(f map[string]any) error {
	return fieldString(f, "join_message", &e.JoinMessage)
}

// PlayerQuit is raised when a player disconnects.
type PlayerQuit struct {
	Player      string
	Reason      string
	QuitMessage string
}

// NewPlayerQuit creates a quit event with the default message.
func NewPlayerQuit(player, reason string) *PlayerQuit {
	return &PlayerQuit{Player: player, Reason: reason, QuitMessage: player + " left the game"}
}

// Kind implements event.Event.
func (*PlayerQuit) Kind() event.Kind { return KindPlayerQuit }

// Fields implements event.Mapped.
func (e *PlayerQuit) Fields() map[string]any {
	return map[string]any{"player": e.Player, "reason": e.Reason, "quit_message": e.QuitMessage}
}

// ApplyFields implements event.Mapped. Only quit_message is writable.
func (e *PlayerQuit) ApplyFields(f map[string]any) error {
	return fieldString(f, "quit_message", &e.QuitMessage)
}

// PlayerChat is raised before a chat message is broadcast. Cancelling it
// drops the message.
type PlayerChat struct {
	event.Cancellation

	Player  string
	Message string
	Format  string
}

// NewPlayerChat creates a chat event with DefaultChatFormat.
func NewPlayerChat(player, message string) *PlayerChat {
	return &PlayerChat{Player: player, Message: message, Format: DefaultChatFormat}
}

// Kind implements event.Event.
func (*PlayerChat) Kind() event.Kind { return KindPlayerChat }

// Render returns the formatted line.
func (e *PlayerChat) Render() string {
	return fmt.Sprintf(e.Format, e.Player, e.Message)
}

// Fields implements event.Mapped.
func (e *PlayerChat) Fields() map[string]any {
	return map[string]any{"player": e.Player, "message": e.Message, "format": e.Format}
}

// ApplyFields implements event.Mapped. message and format are writable.
func (e *PlayerChat) ApplyFields(f map[string]any) error {
	return firstErr(
		fieldString(f, "message", &e.Message),
		fieldString(f, "format", &e.Format),
	)
}

// PlayerMove is raised when a player moves. Handlers may redirect the
// destination or cancel the move.
type PlayerMove struct {
	event.Cancellation

	Player string
	From   Location
	To     Location
}

// NewPlayerMove creates a move event.
func NewPlayerMove(player string, from, to Location) *PlayerMove {
	return &PlayerMove{Player: player, From: from, To: to}
}

// Kind implements event.Event.
func (*PlayerMove) Kind() event.Kind { return KindPlayerMove }

// Fields implements event.Mapped.
func (e *PlayerMove) Fields() map[string]any {
	return map[string]any{"player": e.Player, "from": e.From.fields(), "to": e.To.fields()}
}

// ApplyFields implements event.Mapped. Only to is writable.
func (e *PlayerMove) ApplyFields(f map[string]any) error {
	return fieldLocation(f, "to", &e.To)
}
