package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus; the default for single-node deployments and
// the recorder used by tests.
type MemoryBus struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish records the event.
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (b *MemoryBus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// ByType returns published events of the given type, in publish order.
func (b *MemoryBus) ByType(eventType Type) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Meta.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards all recorded events.
func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
