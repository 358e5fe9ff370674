package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	certificate "certificate-engine/internal/certificates/domain"
)

func record(streamID uuid.UUID, version int) certificate.StoredEvent {
	return certificate.StoredEvent{
		StreamID:   streamID,
		Version:    version,
		Name:       certificate.EventNameIssued,
		Payload:    json.RawMessage(`{}`),
		RecordedAt: time.Now().UTC(),
	}
}

func TestAppendAndLoad(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	streamID := uuid.New()

	if err := store.Append(ctx, streamID, 0, []certificate.StoredEvent{record(streamID, 1)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, streamID, 1, []certificate.StoredEvent{record(streamID, 2)}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	records, err := store.Load(ctx, streamID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 || records[0].Version != 1 || records[1].Version != 2 {
		t.Fatalf("unexpected stream: %+v", records)
	}
}

func TestLoadUnknownStream(t *testing.T) {
	store := NewEventStore()
	if _, err := store.Load(context.Background(), uuid.New()); !errors.Is(err, certificate.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStaleVersionConflicts(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	streamID := uuid.New()

	if err := store.Append(ctx, streamID, 0, []certificate.StoredEvent{record(streamID, 1)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := store.Append(ctx, streamID, 0, []certificate.StoredEvent{record(streamID, 1)})
	if !errors.Is(err, certificate.ErrConcurrencyConflict) {
		t.Fatalf("err = %v, want ErrConcurrencyConflict", err)
	}

	records, err := store.Load(ctx, streamID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("failed append left %d records, want 1", len(records))
	}
}

func TestConcurrentAppendsExactlyOneWins(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	streamID := uuid.New()

	if err := store.Append(ctx, streamID, 0, []certificate.StoredEvent{record(streamID, 1)}); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	const writers = 16
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Append(ctx, streamID, 1, []certificate.StoredEvent{record(streamID, 2)})
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, certificate.ErrConcurrencyConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != writers-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/%d", wins, conflicts, writers-1)
	}
}
