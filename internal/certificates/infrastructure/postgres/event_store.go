package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	certificate "certificate-engine/internal/certificates/domain"
)

const defaultEventsTable = "certificate_events"

// pgUniqueViolation is the SQLSTATE for unique constraint violations; a
// concurrent append on the same (stream_id, version) surfaces as one.
const pgUniqueViolation = "23505"

// EventStore is a Postgres implementation of the certificate event stream.
// The (stream_id, version) primary key is the concurrency backstop behind
// the expected-version check.
type EventStore struct {
	db    *sql.DB
	table string
}

// NewEventStore constructs an event store.
func NewEventStore(db *sql.DB, opts ...EventStoreOption) *EventStore {
	store := &EventStore{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// EventStoreOption configures the store.
type EventStoreOption func(*EventStore)

// WithEventsTable overrides the table name.
func WithEventsTable(table string) EventStoreOption {
	return func(store *EventStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Append atomically appends records when the stream's recorded version
// equals expectedVersion. A failed append has zero observable effect.
func (s *EventStore) Append(ctx context.Context, streamID uuid.UUID, expectedVersion int, records []certificate.StoredEvent) error {
	if s == nil || s.db == nil {
		return errors.New("event store: nil db")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var current int
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM %s WHERE stream_id = $1`, s.table)
	if err := tx.QueryRowContext(ctx, query, streamID).Scan(&current); err != nil {
		return fmt.Errorf("query stream version: %w", err)
	}
	if current != expectedVersion {
		return certificate.ErrConcurrencyConflict
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (stream_id, version, event_type, payload, recorded_at)
VALUES ($1, $2, $3, $4, $5)`, s.table)
	for i, record := range records {
		version := expectedVersion + i + 1
		if _, err := tx.ExecContext(ctx, insert, streamID, version, record.Name, record.Payload, record.RecordedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return certificate.ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event version %d: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return certificate.ErrConcurrencyConflict
		}
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Load returns the full stream in version order, or ErrNotFound.
func (s *EventStore) Load(ctx context.Context, streamID uuid.UUID) ([]certificate.StoredEvent, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("event store: nil db")
	}

	query := fmt.Sprintf(`
SELECT version, event_type, payload, recorded_at
FROM %s
WHERE stream_id = $1
ORDER BY version ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, streamID)
	if err != nil {
		return nil, fmt.Errorf("query stream: %w", err)
	}
	defer rows.Close()

	var records []certificate.StoredEvent
	for rows.Next() {
		record := certificate.StoredEvent{StreamID: streamID}
		if err := rows.Scan(&record.Version, &record.Name, &record.Payload, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream: %w", err)
	}
	if len(records) == 0 {
		return nil, certificate.ErrNotFound
	}
	return records, nil
}
