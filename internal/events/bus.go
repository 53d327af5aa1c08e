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

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(StatusChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}

	switch e := ev.(type) {
	case StatusChangedEvent:
		event.Publish(b.dispatcher, e)
	case StatusRejectedEvent:
		event.Publish(b.dispatcher, e)
	case StatusExpiredEvent:
		event.Publish(b.dispatcher, e)
	case BrightnessChangedEvent:
		event.Publish(b.dispatcher, e)
	case SyncEvent:
		event.Publish(b.dispatcher, e)
	case RenderErrorEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; its parameter type selects the events it
// receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e StatusChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(StatusChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatusRejectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatusExpiredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BrightnessChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SyncEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RenderErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler type
		return func() {}
	}
}
