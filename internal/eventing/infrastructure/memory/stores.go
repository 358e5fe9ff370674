package memory

import (
	"context"
	"sync"

	"certificate-engine/internal/eventing"
)

// OutboxStore is an in-memory outbox for tests and local development.
// Duplicate event ids are accepted; deduplication happens at the consumer
// through the processed store.
type OutboxStore struct {
	mu      sync.Mutex
	records []record
}

type record struct {
	id     string
	env    eventing.Envelope
	status string
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

// Insert appends a pending record.
func (s *OutboxStore) Insert(_ context.Context, env eventing.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := eventing.NewEventID()
	s.records = append(s.records, record{id: id, env: env, status: "pending"})
	return id, nil
}

// ListPending returns pending records, oldest first.
func (s *OutboxStore) ListPending(_ context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var pending []eventing.OutboxRecord
	for _, r := range s.records {
		if r.status != "pending" {
			continue
		}
		pending = append(pending, eventing.OutboxRecord{ID: r.id, Envelope: r.env})
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// MarkSent marks a record as sent.
func (s *OutboxStore) MarkSent(_ context.Context, id string) error {
	return s.setStatus(id, "sent")
}

// MarkFailed marks a record as failed.
func (s *OutboxStore) MarkFailed(_ context.Context, id string) error {
	return s.setStatus(id, "failed")
}

func (s *OutboxStore) setStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].id == id {
			s.records[i].status = status
			break
		}
	}
	return nil
}

// PendingCount returns the number of pending records.
func (s *OutboxStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.status == "pending" {
			n++
		}
	}
	return n
}

// ProcessedStore is an in-memory processed-events store.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewProcessedStore constructs a processed store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]bool)}
}

// HasProcessed checks the in-memory set.
func (s *ProcessedStore) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID+"|"+consumerName], nil
}

// MarkProcessed records the pair.
func (s *ProcessedStore) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID+"|"+consumerName] = true
	return nil
}

// DLQStore is an in-memory dead letter store.
type DLQStore struct {
	mu       sync.Mutex
	failures []eventing.Envelope
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore() *DLQStore {
	return &DLQStore{}
}

// RecordFailure appends the envelope.
func (s *DLQStore) RecordFailure(_ context.Context, env eventing.Envelope, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, env)
	return nil
}

// Failures returns recorded envelopes.
func (s *DLQStore) Failures() []eventing.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventing.Envelope(nil), s.failures...)
}
