package events

import "github.com/kelindar/event"

// UnitOf returns the unit ID an event belongs to, or "" for batch-wide
// events.
func UnitOf(e Event) string {
	switch ev := e.(type) {
	case UnitStartedEvent:
		return ev.UnitID
	case UnitProgressEvent:
		return ev.UnitID
	case UnitFinishedEvent:
		return ev.UnitID
	}
	return ""
}

// SubscribeToChannel forwards events of type T to ch for the status API
// stream. When unit is set, events of other units are dropped; batch-wide
// events always pass. Sends never block: a full channel drops the event.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any, unit string) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		if unit != "" {
			if id := UnitOf(e); id != "" && id != unit {
				return
			}
		}
		select {
		case ch <- e:
		default:
		}
	})
}
