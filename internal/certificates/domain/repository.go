package certificate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoredEvent is one persisted record of an aggregate's stream. Version
// equals the aggregate version after applying the event.
type StoredEvent struct {
	StreamID   uuid.UUID
	Version    int
	Name       string
	Payload    json.RawMessage
	RecordedAt time.Time
}

// EventStore is an append-only per-aggregate event stream with optimistic
// concurrency. Append must be atomic: when the stream's recorded version
// differs from expectedVersion it fails with ErrConcurrencyConflict and
// appends nothing. A successful append is visible to any subsequent Load.
type EventStore interface {
	Append(ctx context.Context, streamID uuid.UUID, expectedVersion int, records []StoredEvent) error
	// Load returns the full stream in append order, or ErrNotFound.
	Load(ctx context.Context, streamID uuid.UUID) ([]StoredEvent, error)
}

// Repository persists certificates as event streams and reconstructs them by
// replay. The event sequence is the only source of truth; no current-state
// snapshot is stored.
type Repository struct {
	store EventStore
}

// NewRepository constructs a repository.
func NewRepository(store EventStore) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("certificate repository: nil event store")
	}
	return &Repository{store: store}, nil
}

// Save appends the events produced since the certificate was loaded (or
// created). The expected version is derived from the certificate's current
// version minus the batch size, so a concurrent writer surfaces as
// ErrConcurrencyConflict with no partial effect.
func (r *Repository) Save(ctx context.Context, cert Certificate, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	expected := cert.Version() - len(events)
	if expected < 0 {
		return ErrCorruptStream
	}
	records := make([]StoredEvent, 0, len(events))
	now := time.Now().UTC()
	for i, event := range events {
		payload, err := encodeEvent(event)
		if err != nil {
			return err
		}
		records = append(records, StoredEvent{
			StreamID:   cert.ID(),
			Version:    expected + i + 1,
			Name:       event.Name(),
			Payload:    payload,
			RecordedAt: now,
		})
	}
	return r.store.Append(ctx, cert.ID(), expected, records)
}

// Load replays the full stream for the aggregate id.
func (r *Repository) Load(ctx context.Context, id uuid.UUID) (Certificate, error) {
	return r.load(ctx, id, 0)
}

// LoadAt replays the stream up to and including asOfVersion. Requesting a
// version beyond the stream head is a caller fault.
func (r *Repository) LoadAt(ctx context.Context, id uuid.UUID, asOfVersion int) (Certificate, error) {
	if asOfVersion < 1 {
		return Certificate{}, ErrVersionBeyondStream
	}
	return r.load(ctx, id, asOfVersion)
}

func (r *Repository) load(ctx context.Context, id uuid.UUID, asOfVersion int) (Certificate, error) {
	records, err := r.store.Load(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if len(records) == 0 {
		return Certificate{}, ErrNotFound
	}
	if asOfVersion > len(records) {
		return Certificate{}, fmt.Errorf("%w: asked %d, head %d", ErrVersionBeyondStream, asOfVersion, len(records))
	}
	if asOfVersion > 0 {
		records = records[:asOfVersion]
	}
	events := make([]Event, 0, len(records))
	for _, record := range records {
		event, err := decodeEvent(record.Name, record.Payload)
		if err != nil {
			return Certificate{}, err
		}
		events = append(events, event)
	}
	return Replay(events)
}

func encodeEvent(event Event) (json.RawMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.Name(), err)
	}
	return payload, nil
}

func decodeEvent(name string, payload json.RawMessage) (Event, error) {
	switch name {
	case EventNameCreated:
		var event Created
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return event, nil
	case EventNameIssued:
		var event Issued
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return event, nil
	case EventNameRejected:
		var event Rejected
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return event, nil
	case EventNameTransferred:
		var event Transferred
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return event, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}
