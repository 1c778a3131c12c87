package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(UnitStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case UnitStartedEvent:
		event.Publish(b.dispatcher, e)
	case UnitProgressEvent:
		event.Publish(b.dispatcher, e)
	case UnitFinishedEvent:
		event.Publish(b.dispatcher, e)
	case BatchFinishedEvent:
		event.Publish(b.dispatcher, e)
	case FileDiscoveredEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type selects the events it receives. Returns an unsubscribe
// function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e UnitFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(UnitStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UnitProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UnitFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BatchFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileDiscoveredEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
