package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	certificate "certificate-engine/internal/certificates/domain"
	"certificate-engine/internal/certificates/infrastructure/postgres"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var exists bool
	err = db.QueryRow(`SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_name = 'certificate_events'
	)`).Scan(&exists)
	if err != nil || !exists {
		t.Skip("missing certificate_events table; run migrations")
	}
	return db
}

func storedEvents(streamID uuid.UUID, fromVersion int, names ...string) []certificate.StoredEvent {
	records := make([]certificate.StoredEvent, 0, len(names))
	for i, name := range names {
		records = append(records, certificate.StoredEvent{
			StreamID:   streamID,
			Version:    fromVersion + i + 1,
			Name:       name,
			Payload:    json.RawMessage(`{}`),
			RecordedAt: time.Now().UTC(),
		})
	}
	return records
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := openDB(t)
	store := postgres.NewEventStore(db)
	ctx := context.Background()
	streamID := uuid.New()

	if err := store.Append(ctx, streamID, 0, storedEvents(streamID, 0, certificate.EventNameCreated, certificate.EventNameIssued)); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := store.Load(ctx, streamID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	for i, record := range records {
		if record.Version != i+1 {
			t.Fatalf("record %d version = %d", i, record.Version)
		}
	}
}

func TestEventStore_ConflictOnStaleVersion(t *testing.T) {
	db := openDB(t)
	store := postgres.NewEventStore(db)
	ctx := context.Background()
	streamID := uuid.New()

	if err := store.Append(ctx, streamID, 0, storedEvents(streamID, 0, certificate.EventNameCreated)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.Append(ctx, streamID, 0, storedEvents(streamID, 0, certificate.EventNameIssued))
	if !errors.Is(err, certificate.ErrConcurrencyConflict) {
		t.Fatalf("err = %v, want concurrency conflict", err)
	}

	records, err := store.Load(ctx, streamID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (conflicting append must have no effect)", len(records))
	}
}

func TestEventStore_UnknownStream(t *testing.T) {
	db := openDB(t)
	store := postgres.NewEventStore(db)

	_, err := store.Load(context.Background(), uuid.New())
	if !errors.Is(err, certificate.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestEventStore_ConcurrentAppendSingleWinner(t *testing.T) {
	db := openDB(t)
	store := postgres.NewEventStore(db)
	ctx := context.Background()
	streamID := uuid.New()

	if err := store.Append(ctx, streamID, 0, storedEvents(streamID, 0, certificate.EventNameCreated)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const writers = 8
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			results <- store.Append(ctx, streamID, 1, storedEvents(streamID, 1, certificate.EventNameIssued))
		}()
	}

	wins := 0
	for i := 0; i < writers; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, certificate.ErrConcurrencyConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	records, err := store.Load(ctx, streamID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
}
