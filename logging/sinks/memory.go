package sinks

import (
	"context"
	"maps"
	"slices"
	"sync"

	"automated-kingdom/server/logging"
)

// EventFilter selects recorded events. Zero fields match everything.
// Entity matches the actor or any target.
type EventFilter struct {
	SessionID string
	Category  string
	Type      logging.EventType
	Entity    *logging.EntityRef
}

func (f EventFilter) matches(event logging.Event) bool {
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.Category != "" && event.Category != f.Category {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.Entity != nil {
		return event.Actor == *f.Entity || slices.Contains(event.Targets, *f.Entity)
	}
	return true
}

// MemorySink records events in a ring that can be queried by session or
// entity. A zero capacity keeps everything.
type MemorySink struct {
	mu       sync.RWMutex
	capacity int
	events   []logging.Event
	next     int
}

func NewMemorySink() *MemorySink {
	return NewBoundedMemorySink(0)
}

// NewBoundedMemorySink keeps the newest capacity events.
func NewBoundedMemorySink(capacity int) *MemorySink {
	if capacity < 0 {
		capacity = 0
	}
	return &MemorySink{capacity: capacity}
}

func (s *MemorySink) Write(event logging.Event) error {
	event.Targets = slices.Clone(event.Targets)
	event.Extra = maps.Clone(event.Extra)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == 0 || len(s.events) < s.capacity {
		s.events = append(s.events, event)
		return nil
	}
	s.events[s.next] = event
	s.next = (s.next + 1) % s.capacity
	return nil
}

// Publish lets the sink stand in for a Publisher without a router.
func (s *MemorySink) Publish(_ context.Context, event logging.Event) {
	_ = s.Write(event)
}

// Find returns matching events oldest first.
func (s *MemorySink) Find(filter EventFilter) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []logging.Event
	for i := range s.events {
		event := s.events[(s.next+i)%len(s.events)]
		if filter.matches(event) {
			out = append(out, event)
		}
	}
	return out
}

func (s *MemorySink) Events() []logging.Event {
	return s.Find(EventFilter{})
}

func (s *MemorySink) EventsOfType(eventType logging.EventType) []logging.Event {
	return s.Find(EventFilter{Type: eventType})
}

// EventsForSession returns what one session published.
func (s *MemorySink) EventsForSession(id string) []logging.Event {
	return s.Find(EventFilter{SessionID: id})
}

// EventsInvolving returns events where ref acted or was targeted.
func (s *MemorySink) EventsInvolving(ref logging.EntityRef) []logging.Event {
	return s.Find(EventFilter{Entity: &ref})
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
	s.next = 0
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
