package events

import "github.com/dshills/plugbus/internal/event"

// Server event kinds.
const (
	// KindServerCommand is raised before a console or player command runs.
	KindServerCommand event.Kind = "server.command"

	// KindPluginEnable is raised after a plugin is activated.
	KindPluginEnable event.Kind = "plugin.enable"

	// KindPluginDisable is raised after a plugin is deactivated.
	KindPluginDisable event.Kind = "plugin.disable"
)

// ServerCommand is raised before a command runs. Handlers may rewrite or
// cancel it.
type ServerCommand struct {
	event.Cancellation

	Sender  string
	Command string
}

// NewServerCommand creates a command event.
func NewServerCommand(sender, command string) *ServerCommand {
	return &ServerCommand{Sender: sender, Command: command}
}

// Kind implements event.Event.
func (*ServerCommand) Kind() event.Kind { return KindServerCommand }

// Fields implements event.Mapped.
func (e *ServerCommand) Fields() map[string]any {
	return map[string]any{"sender": e.Sender, "command": e.Command}
}

// ApplyFields implements event.Mapped. Only command is writable.
func (e *ServerCommand) ApplyFields(f map[string]any) error {
	return fieldString(f, "command", &e.Command)
}

// PluginEnable is raised by the plugin manager once a plugin is active.
type PluginEnable struct {
	Name    string
	Version string
}

// Kind implements event.Event.
func (*PluginEnable) Kind() event.Kind { return KindPluginEnable }

// Fields implements event.Mapped.
func (e *PluginEnable) Fields() map[string]any {
	return map[string]any{"name": e.Name, "version": e.Version}
}

// ApplyFields implements event.Mapped. No field is writable.
func (e *PluginEnable) ApplyFields(map[string]any) error { return nil }

// PluginDisable is raised by the plugin manager when a plugin stops.
type PluginDisable struct {
	Name    string
	Version string
	Reason  string
}

// Kind implements event.Event.
func (*PluginDisable) Kind() event.Kind { return KindPluginDisable }

// Fields implements event.Mapped.
func (e *PluginDisable) Fields() map[string]any {
	return map[string]any{"name": e.Name, "version": e.Version, "reason": e.Reason}
}

// ApplyFields implements event.Mapped. No field is writable.
func (e *PluginDisable) ApplyFields(map[string]any) error { return nil }
