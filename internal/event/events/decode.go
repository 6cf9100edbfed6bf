package events

import (
	"fmt"
	"sort"

	"github.com/dshills/plugbus/internal/event"
)

type decoder func(fields map[string]any) (event.Event, error)

var decoders = map[event.Kind]decoder{
	KindPlayerJoin: func(f map[string]any) (event.Event, error) {
		e := &PlayerJoin{}
		if err := fieldString(f, "player", &e.Player); err != nil {
			return nil, err
		}
		*e = *NewPlayerJoin(e.Player)
		return e, e.ApplyFields(f)
	},
	KindPlayerQuit: func(f map[string]any) (event.Event, error) {
		e := &PlayerQuit{}
		if err := firstErr(fieldString(f, "player", &e.Player), fieldString(f, "reason", &e.Reason)); err != nil {
			return nil, err
		}
		*e = *NewPlayerQuit(e.Player, e.Reason)
		return e, e.ApplyFields(f)
	},
	KindPlayerChat: func(f map[string]any) (event.Event, error) {
		e := NewPlayerChat("", "")
		return e, firstErr(fieldString(f, "player", &e.Player), e.ApplyFields(f))
	},
	KindPlayerMove: func(f map[string]any) (event.Event, error) {
		e := &PlayerMove{}
		return e, firstErr(
			fieldString(f, "player", &e.Player),
			fieldLocation(f, "from", &e.From),
			fieldLocation(f, "to", &e.To),
		)
	},
	KindBlockBreak: func(f map[string]any) (event.Event, error) {
		e := NewBlockBreak("", "", Location{})
		return e, firstErr(
			fieldString(f, "player", &e.Player),
			fieldString(f, "block", &e.Block),
			fieldLocation(f, "at", &e.At),
			e.ApplyFields(f),
		)
	},
	KindBlockPlace: func(f map[string]any) (event.Event, error) {
		e := &BlockPlace{}
		return e, firstErr(
			fieldString(f, "player", &e.Player),
			fieldString(f, "block", &e.Block),
			fieldLocation(f, "at", &e.At),
		)
	},
	KindServerCommand: func(f map[string]any) (event.Event, error) {
		e := &ServerCommand{}
		return e, firstErr(fieldString(f, "sender", &e.Sender), fieldString(f, "command", &e.Command))
	},
}

// Decode builds an event of kind k from fields. Kinds defined in this
// package produce their typed event; any other valid kind produces an
// event.Dynamic, or an event.CancellableDynamic when cancellable is set.
func Decode(k event.Kind, fields map[string]any, cancellable bool) (event.Event, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %q", event.ErrInvalidKind, k)
	}
	if dec, ok := decoders[k]; ok {
		ev, err := dec(fields)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		return ev, nil
	}
	if cancellable {
		return event.NewCancellableDynamic(k, fields), nil
	}
	return event.NewDynamic(k, fields), nil
}

// Known returns the kinds with a typed event, sorted.
func Known() []event.Kind {
	out := make([]event.Kind, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
