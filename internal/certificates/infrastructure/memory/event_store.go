package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	certificate "certificate-engine/internal/certificates/domain"
)

// EventStore is an in-memory event stream store for tests and local
// development. It honors the same optimistic-concurrency contract as the
// Postgres implementation.
type EventStore struct {
	mu      sync.Mutex
	streams map[uuid.UUID][]certificate.StoredEvent
}

// NewEventStore constructs a store.
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[uuid.UUID][]certificate.StoredEvent)}
}

// Append appends records when the stream head equals expectedVersion;
// otherwise it fails with ErrConcurrencyConflict and changes nothing.
func (s *EventStore) Append(_ context.Context, streamID uuid.UUID, expectedVersion int, records []certificate.StoredEvent) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	if len(stream) != expectedVersion {
		return certificate.ErrConcurrencyConflict
	}
	for i, record := range records {
		if record.Version != expectedVersion+i+1 {
			return certificate.ErrConcurrencyConflict
		}
	}
	s.streams[streamID] = append(stream, records...)
	return nil
}

// StreamCount returns the number of non-empty streams.
func (s *EventStore) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Load returns the stream in append order.
func (s *EventStore) Load(_ context.Context, streamID uuid.UUID) ([]certificate.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[streamID]
	if !ok || len(stream) == 0 {
		return nil, certificate.ErrNotFound
	}
	return append([]certificate.StoredEvent(nil), stream...), nil
}
