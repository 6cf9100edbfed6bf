// Package events defines the game-server event kinds raised through the
// plugbus event bus.
//
// Each event has a kind constant and a struct. Events that handlers may
// veto embed event.Cancellation. Every event implements event.Mapped so
// that script handlers can read it as a table and write back the fields
// that are meant to be changed.
//
//	ev := events.NewPlayerChat("alex", "hello")
//	report, err := bus.Raise(ctx, ev)
//	if err == nil && !report.Cancelled {
//	    broadcast(ev.Format, ev.Player, ev.Message)
//	}
//
// Decode builds an event from a kind and a field map, falling back to
// event.Dynamic for kinds this package does not define.
package events
