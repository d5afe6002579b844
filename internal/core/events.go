package core

import "sync"

// EventType identifies the kind of event fired on the bus.
type EventType int

const (
	EventConfigReloaded EventType = iota
	EventCallbackInvoked
	EventCallbackQueued
	EventCallbackUnknown
	EventCallbackForwarded
)

func (t EventType) String() string {
	switch t {
	case EventConfigReloaded:
		return "config_reloaded"
	case EventCallbackInvoked:
		return "callback_invoked"
	case EventCallbackQueued:
		return "callback_queued"
	case EventCallbackUnknown:
		return "callback_unknown"
	case EventCallbackForwarded:
		return "callback_forwarded"
	default:
		return "unknown"
	}
}

// Event carries data about something that happened in the system.
type Event struct {
	Type    EventType
	Payload any
}

// Callback sources reported in CallbackPayload.
const (
	SourceChannel = "channel" // received from a relaunched process
	SourceDirect  = "direct"  // invoked in the process that was launched
	SourcePoll    = "poll"    // drained from the pending queue
)

// CallbackPayload is the payload for the callback-related events.
type CallbackPayload struct {
	Name   string
	Source string
}

// Handler is a callback for bus subscribers.
type Handler func(Event)

// EventBus provides pub/sub between system components.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a ready-to-use event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a given event type.
func (eb *EventBus) Subscribe(t EventType, h Handler) {
	eb.mu.Lock()
	eb.handlers[t] = append(eb.handlers[t], h)
	eb.mu.Unlock()
}

// Publish fires an event to all subscribed handlers synchronously.
// A nil bus is a valid no-op publisher.
func (eb *EventBus) Publish(e Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
