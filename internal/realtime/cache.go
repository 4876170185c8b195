package realtime

import (
	"encoding/json"
	"sync"
)

// DefaultCacheSize is how many broadcast events are kept for diagnostics.
const DefaultCacheSize = 10

// Event is one stamped broadcast. It is never modified after creation.
type Event struct {
	ID        string          `json:"eventId"`
	Name      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
	Instance  string          `json:"instanciaOrigem"`
}

// EventCache keeps the most recent events, evicting in insertion order.
type EventCache struct {
	mu       sync.RWMutex
	capacity int
	events   []Event
}

// NewEventCache creates a cache holding at most capacity events.
func NewEventCache(capacity int) *EventCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &EventCache{
		capacity: capacity,
		events:   make([]Event, 0, capacity),
	}
}

// Add appends ev, dropping the oldest entries beyond capacity.
// It returns the number of evicted events.
func (c *EventCache) Add(ev Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for len(c.events) >= c.capacity {
		copy(c.events, c.events[1:])
		c.events = c.events[:len(c.events)-1]
		evicted++
	}
	c.events = append(c.events, ev)
	return evicted
}

// Recent returns the cached events, oldest first.
func (c *EventCache) Recent() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of cached events.
func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Capacity returns the maximum number of cached events.
func (c *EventCache) Capacity() int {
	return c.capacity
}
