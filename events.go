package tiercache

import "time"

// EventType names a cache lifecycle event.
type EventType string

const (
	EventHit    EventType = "cache:hit"
	EventMiss   EventType = "cache:miss"
	EventSet    EventType = "cache:set"
	EventDelete EventType = "cache:delete"
	EventClear  EventType = "cache:clear"
	EventEvict  EventType = "cache:evict"
	EventExpire EventType = "cache:expire"
	EventError  EventType = "cache:error"
	EventSync   EventType = "cache:sync"
	EventWarmup EventType = "cache:warmup"

	// EventAll subscribes a handler to every event type.
	EventAll EventType = "*"
)

// Event describes one cache lifecycle occurrence. Key, Category, Tier and
// Err are filled when they apply to the event type.
type Event struct {
	Type     EventType
	Key      string
	Category string
	Tier     string
	Err      error
	At       time.Time
}

// Handler observes cache events. Handlers run synchronously on the
// goroutine that triggered the event and must return quickly; they must not
// call back into the Manager (eviction events fire while tier locks are
// held).
type Handler func(Event)
