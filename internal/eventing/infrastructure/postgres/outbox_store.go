package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certificate-engine/internal/eventing"
)

const defaultOutboxTable = "event_outbox"

const (
	statusPending = "pending"
	statusSent    = "sent"
	statusFailed  = "failed"
)

// OutboxStore is a Postgres implementation for outbox records.
type OutboxStore struct {
	db    *sql.DB
	table string
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore(db *sql.DB, opts ...OutboxOption) *OutboxStore {
	store := &OutboxStore{db: db, table: defaultOutboxTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// OutboxOption configures the outbox store.
type OutboxOption func(*OutboxStore)

// WithOutboxTable overrides the table name.
func WithOutboxTable(table string) OutboxOption {
	return func(store *OutboxStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Insert writes an envelope to the outbox. Duplicate event ids are stored
// and later absorbed by the consumer-side processed store. The envelope
// subject (GSRN or certificate id) is kept in its own column for tracing.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("outbox store: nil db")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	outboxID := eventing.NewEventID()
	query := fmt.Sprintf(`
INSERT INTO %s (id, event_id, event_type, subject, payload, status, attempts)
VALUES ($1, $2, $3, $4, $5, '%s', 0)
ON CONFLICT (id) DO NOTHING`, s.table, statusPending)

	if _, err := s.db.ExecContext(ctx, query, outboxID, env.EventID, env.EventType, env.Subject, payload); err != nil {
		return "", err
	}
	return outboxID, nil
}

// ListPending returns pending outbox records, oldest first.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("outbox store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, payload
FROM %s
WHERE status = '%s'
ORDER BY created_at ASC
LIMIT $1`, s.table, statusPending)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []eventing.OutboxRecord
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var env eventing.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, err
		}
		records = append(records, eventing.OutboxRecord{ID: id, Envelope: env})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSent marks an outbox record as sent.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, fmt.Sprintf(`
UPDATE %s SET status = '%s', sent_at = $1 WHERE id = $2`, s.table, statusSent), time.Now().UTC(), id)
}

// MarkFailed marks an outbox record as failed and increments attempts.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, fmt.Sprintf(`
UPDATE %s SET status = '%s', attempts = attempts + 1 WHERE id = $1`, s.table, statusFailed), id)
}

func (s *OutboxStore) setStatus(ctx context.Context, id, query string, args ...any) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	if id == "" {
		return errors.New("outbox store: empty record id")
	}
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// RequeueFailed flips failed records below the attempt cap back to pending so
// the dispatcher picks them up again. Returns the number of requeued records.
func (s *OutboxStore) RequeueFailed(ctx context.Context, maxAttempts, limit int) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("outbox store: nil db")
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = '%s'
WHERE id IN (
	SELECT id FROM %s
	WHERE status = '%s' AND attempts < $1
	ORDER BY created_at ASC
	LIMIT $2
)`, s.table, statusPending, s.table, statusFailed)

	res, err := s.db.ExecContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
