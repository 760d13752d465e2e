package notify

import (
	"context"
	"sync"
)

// SentEvent captures one delivered notification for inspection in tests.
type SentEvent struct {
	UnitID    int64
	EventKind string
	Payload   map[string]any
}

// MemorySink is an in-memory Notifier used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []SentEvent
}

// Notify appends the event to the in-memory log.
func (s *MemorySink) Notify(_ context.Context, unitID int64, eventKind string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SentEvent{UnitID: unitID, EventKind: eventKind, Payload: payload})
}

// Events returns a copy of everything delivered so far.
func (s *MemorySink) Events() []SentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentEvent(nil), s.events...)
}
