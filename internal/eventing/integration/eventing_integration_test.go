package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	certevents "certificate-engine/internal/certificates/application/events"
	"certificate-engine/internal/eventing"
	"certificate-engine/internal/eventing/eventbus"
	eventingrepo "certificate-engine/internal/eventing/infrastructure/postgres"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func openEventingDB(t *testing.T) *sql.DB {
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

	for _, table := range []string{"event_outbox", "processed_events", "dead_letter_events"} {
		if !tableExists(db, table) {
			t.Skipf("missing table %s; run migrations", table)
		}
	}
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM processed_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM dead_letter_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM event_outbox")
	return db
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_name = $1
	)`, name).Scan(&exists)
	return err == nil && exists
}

func sampleIssued() certevents.CertificateIssued {
	return certevents.CertificateIssued{
		CertificateID: uuid.New(),
		PointType:     "production",
		Owner:         "org-1",
		OccurredAt:    time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestEventing_IdempotentConsumer(t *testing.T) {
	db := openEventingDB(t)
	ctx := context.Background()

	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(certevents.CertificateIssued{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore)
	publisher, err := eventing.NewPublisher(outboxStore, dispatcher, bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	count := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[certevents.CertificateIssued](), "consumer-a", func(ctx context.Context, event any) error {
		count++
		return nil
	}, processedStore)

	ctx = eventing.WithEventID(ctx, "evt-dup-001")
	payload := sampleIssued()

	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}
	_ = dispatcher.Dispatch(ctx, 10)

	if count != 1 {
		t.Fatalf("expected handler once, got %d", count)
	}
}

func TestEventing_DLQOnFailure(t *testing.T) {
	db := openEventingDB(t)
	ctx := context.Background()

	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(certevents.CertificateIssued{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore)
	publisher, err := eventing.NewPublisher(outboxStore, dispatcher, bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	eventing.Subscribe(bus, eventbus.EventTypeOf[certevents.CertificateIssued](), "consumer-fail", func(ctx context.Context, event any) error {
		return errors.New("boom")
	}, processedStore)

	if err := publisher.Publish(ctx, sampleIssued()); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	_ = dispatcher.Dispatch(ctx, 10)

	var dlqCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letter_events").Scan(&dlqCount); err != nil {
		t.Fatalf("count dlq: %v", err)
	}
	if dlqCount != 1 {
		t.Fatalf("dlq rows = %d, want 1", dlqCount)
	}

	var failedCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_outbox WHERE status = 'failed'").Scan(&failedCount); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if failedCount != 1 {
		t.Fatalf("failed outbox rows = %d, want 1", failedCount)
	}

	letters, err := dlqStore.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list dlq: %v", err)
	}
	if len(letters) != 1 || letters[0].Error != "boom" || letters[0].Attempts != 1 {
		t.Fatalf("unexpected dead letters: %+v", letters)
	}
}

func TestEventing_RequeueFailedRedelivers(t *testing.T) {
	db := openEventingDB(t)
	ctx := context.Background()

	bus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(certevents.CertificateIssued{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore)
	publisher, err := eventing.NewPublisher(outboxStore, dispatcher, bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	attempts := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[certevents.CertificateIssued](), "consumer-flaky", func(ctx context.Context, event any) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	}, processedStore)

	if err := publisher.Publish(ctx, sampleIssued()); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	_ = dispatcher.Dispatch(ctx, 10)
	if attempts != 1 {
		t.Fatalf("attempts after first dispatch = %d, want 1", attempts)
	}

	requeued, err := outboxStore.RequeueFailed(ctx, 5, 10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("requeued = %d, want 1", requeued)
	}
	if err := dispatcher.Dispatch(ctx, 10); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts after retry = %d, want 2", attempts)
	}

	var sentCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_outbox WHERE status = 'sent'").Scan(&sentCount); err != nil {
		t.Fatalf("count sent: %v", err)
	}
	if sentCount != 1 {
		t.Fatalf("sent outbox rows = %d, want 1", sentCount)
	}
}

func TestEventing_ProcessedPurge(t *testing.T) {
	db := openEventingDB(t)
	ctx := context.Background()

	store := eventingrepo.NewProcessedStore(db)
	if err := store.MarkProcessed(ctx, "evt-old", "consumer-a"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
UPDATE processed_events SET processed_at = now() - interval '90 days'
WHERE event_id = 'evt-old'`); err != nil {
		t.Fatalf("age marker: %v", err)
	}
	if err := store.MarkProcessed(ctx, "evt-new", "consumer-a"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	purged, err := store.PurgeOlderThan(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	stale, err := store.HasProcessed(ctx, "evt-old", "consumer-a")
	if err != nil {
		t.Fatalf("has processed: %v", err)
	}
	fresh, err := store.HasProcessed(ctx, "evt-new", "consumer-a")
	if err != nil {
		t.Fatalf("has processed: %v", err)
	}
	if stale || !fresh {
		t.Fatalf("stale=%v fresh=%v, want false/true", stale, fresh)
	}
}
