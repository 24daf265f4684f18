package monitor

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/miwatch/miwatch/pkg/config"
	"github.com/miwatch/miwatch/pkg/mijia"
)

// EventKind identifies one of the five event categories the monitor
// publishes.
type EventKind string

const (
	EventDeviceUpdate  EventKind = "device_update"
	EventDeviceOffline EventKind = "device_offline"
	EventDeviceOnline  EventKind = "device_online"
	EventPropertyAlert EventKind = "property_alert"
	EventError         EventKind = "error"
)

// Event is the payload delivered to listeners. Fields beyond Kind,
// DID and Device are populated per kind: Properties for
// device_update, Rule/Property/Value for property_alert, Err for
// error.
type Event struct {
	Kind       EventKind
	DID        string
	Device     mijia.DeviceInfo
	Properties map[string]any
	Rule       *config.AlertRule
	Property   string
	Value      any
	Err        error
}

// Listener receives events synchronously on the publishing goroutine.
type Listener func(Event)

// Bus dispatches events to per-kind listener lists. Dispatch is
// synchronous and in registration order; a panicking listener is
// recovered and logged without affecting the remaining listeners or
// the publisher.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
	logger    zerolog.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		listeners: make(map[EventKind][]Listener),
		logger:    logger,
	}
}

// Subscribe registers a listener for one event kind.
func (b *Bus) Subscribe(kind EventKind, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], fn)
}

// Publish delivers an event to all listeners registered for its kind.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	listeners := b.listeners[e.Kind]
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.invoke(fn, e)
	}
}

func (b *Bus) invoke(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", string(e.Kind)).
				Str("did", e.DID).
				Any("panic", r).
				Msg("event listener panicked")
		}
	}()
	fn(e)
}
