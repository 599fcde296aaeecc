package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"
)

// EventType enumerates the orchestrator's observable side effects (§4.4).
type EventType string

const (
	EventAccountAdded   EventType = "account-added"
	EventAccountUpdated EventType = "account-updated"
	EventAccountDeleted EventType = "account-deleted"
	EventFolderCreated  EventType = "folder-created"
	EventFolderRenamed  EventType = "folder-renamed"
	EventFolderDeleted  EventType = "folder-deleted"
	EventContactAdded   EventType = "contact-added"
	EventContactChanged EventType = "contact-changed"
	EventContactDeleted EventType = "contact-deleted"
)

// Event is one observable side effect, dispatched after its committing write
// (§4.4: "Event order must match the effect order").
type Event struct {
	Type    EventType
	Payload any
}

// Listener observes orchestrator events. A listener that panics is
// recovered and logged; it never unwinds into the originating write (§4.4:
// "Event listeners that throw do not affect the originating write but are
// logged").
type Listener func(Event)

type eventBus struct {
	mu        sync.Mutex
	listeners []Listener
	log       zerolog.Logger
}

func newEventBus(log zerolog.Logger) *eventBus {
	return &eventBus{log: log}
}

// Subscribe registers a listener and returns a function that removes it.
func (b *eventBus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
	idx := len(b.listeners) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.listeners) {
			b.listeners[idx] = nil
		}
	}
}

func (b *eventBus) emit(ev Event) {
	b.mu.Lock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		if l == nil {
			continue
		}
		b.dispatch(l, ev)
	}
}

func (b *eventBus) dispatch(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("event", string(ev.Type)).Msg("event listener panicked")
		}
	}()
	l(ev)
}
