// Package event implements the plugbus event dispatcher: priority-ordered,
// cancellable, in-process delivery of events to handlers registered by
// plugins.
//
// # Architecture
//
//	                 ┌─────────────────────────────┐
//	                 │             Bus             │
//	                 │  Register / RegisterAll     │
//	                 │  Raise / RaiseAsync         │
//	                 └─────────────────────────────┘
//	                    │                      │
//	                    ▼                      ▼
//	          ┌──────────────────┐   ┌──────────────────┐
//	          │     Registry     │   │    Dispatcher    │
//	          │  kind → list     │   │  snapshot walk   │
//	          │  owner → kinds   │   │  skip / isolate  │
//	          └──────────────────┘   └──────────────────┘
//	                    │
//	                    ▼
//	          ┌──────────────────┐
//	          │   HandlerList    │
//	          │  six tier buckets│
//	          │  baked snapshot  │
//	          └──────────────────┘
//
// # Tiers
//
// Handlers run in tier order, then in registration order within a tier:
//
//	LOWEST → LOW → NORMAL → HIGH → HIGHEST → MONITOR
//
// Later tiers see, and may override, what earlier tiers decided. MONITOR
// handlers observe the final outcome; WithMonitorGuard enforces that they
// leave the cancellation state alone.
//
// # Cancellation
//
// Events that embed Cancellation can be cancelled by any handler. A
// cancelled event still reaches every handler except those registered
// with ignoreCancelled, and a later handler may un-cancel it.
//
// # Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	_, err := bus.Register("player.chat", event.On(func(ctx context.Context, ev *events.PlayerChat) error {
//	    if strings.Contains(ev.Message, "spam") {
//	        ev.SetCancelled(true)
//	    }
//	    return nil
//	}), event.PriorityNormal, false, "antispam")
//
//	report, err := bus.Raise(ctx, events.NewPlayerChat("steve", "hello"))
//	if report.Cancelled {
//	    // message suppressed
//	}
//
// Owners are opaque strings, usually plugin names. UnregisterOwner removes
// all of an owner's handlers at once when a plugin unloads.
package event
