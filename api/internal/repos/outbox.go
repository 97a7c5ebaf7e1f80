package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"collab-workspace-system/api/internal/models"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusSending   = "sending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusDead      = "dead"
)

const outboxSchema = `
CREATE TABLE IF NOT EXISTS outbox_events (
	event_id        UUID PRIMARY KEY,
	source_event_id TEXT NOT NULL,
	aggregate_type  TEXT NOT NULL,
	aggregate_id    TEXT NOT NULL,
	topic           TEXT NOT NULL,
	msg_key         TEXT NOT NULL DEFAULT '',
	payload         JSONB NOT NULL,
	headers         JSONB NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL,
	attempts        INT NOT NULL DEFAULT 0,
	next_retry_at   TIMESTAMPTZ,
	locked_at       TIMESTAMPTZ,
	locked_by       TEXT,
	last_error      TEXT,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	published_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_events_pending_idx ON outbox_events (status, next_retry_at, created_at);
`

const outboxColumns = `event_id, source_event_id, aggregate_type, aggregate_id, topic, msg_key, payload, headers, status,
	attempts, next_retry_at, locked_at, locked_by, last_error, created_at, updated_at, published_at`

type OutboxRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxRepo(pool *pgxpool.Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

func (r *OutboxRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, outboxSchema)
	return err
}

func (r *OutboxRepo) Insert(ctx context.Context, db DBTX, event models.OutboxEvent) (models.OutboxEvent, error) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}
	headers, err := json.Marshal(event.Headers)
	if err != nil {
		return event, err
	}

	// A replayed insert for the same row id is a no-op.
	_, err = db.Exec(ctx, `
		INSERT INTO outbox_events (`+outboxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.SourceEventID, event.AggregateType, event.AggregateID, event.Topic, event.Key, event.Payload, headers,
		event.Status, event.Attempts, event.NextRetryAt, event.LockedAt, event.LockedBy, event.LastError,
		event.CreatedAt, event.UpdatedAt, event.PublishedAt)
	return event, err
}

func (r *OutboxRepo) InsertInTx(ctx context.Context, tx pgx.Tx, event models.OutboxEvent) (models.OutboxEvent, error) {
	return r.Insert(ctx, tx, event)
}

func (r *OutboxRepo) ClaimPending(ctx context.Context, owner string, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		WITH candidates AS (
			SELECT event_id
			FROM outbox_events
			WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= now())
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		UPDATE outbox_events o
		SET status = $3, locked_at = now(), locked_by = $4, updated_at = now()
		FROM candidates c
		WHERE o.event_id = c.event_id
		RETURNING o.event_id, o.source_event_id, o.aggregate_type, o.aggregate_id, o.topic, o.msg_key, o.payload, o.headers,
			o.status, o.attempts, o.next_retry_at, o.locked_at, o.locked_by, o.last_error, o.created_at, o.updated_at, o.published_at
	`, OutboxStatusPending, limit, OutboxStatusSending, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.OutboxEvent, 0, limit)
	for rows.Next() {
		event, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *OutboxRepo) GetByID(ctx context.Context, eventID uuid.UUID) (models.OutboxEvent, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+outboxColumns+` FROM outbox_events WHERE event_id = $1`, eventID)
	return scanOutbox(row)
}

func (r *OutboxRepo) MarkDelivered(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, published_at = now(), updated_at = now(), locked_at = NULL, locked_by = NULL
		WHERE event_id = $1
	`, eventID, OutboxStatusDelivered)
	return err
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextRetryAt *time.Time, lastErr string, dead bool) error {
	status := OutboxStatusPending
	if dead {
		status = OutboxStatusDead
		nextRetryAt = nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, attempts = $3, next_retry_at = $4, last_error = $5, updated_at = now(), locked_at = NULL, locked_by = NULL
		WHERE event_id = $1
	`, eventID, status, attempts, nextRetryAt, lastErr)
	return err
}

// EnsurePending returns a claimed row to pending when its dispatch task
// could not be enqueued.
func (r *OutboxRepo) EnsurePending(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, updated_at = now(), locked_at = NULL, locked_by = NULL
		WHERE event_id = $1 AND status = $3
	`, eventID, OutboxStatusPending, OutboxStatusSending)
	return err
}

// ReleaseStale returns rows stuck in sending for longer than olderThan.
func (r *OutboxRepo) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, locked_at = NULL, locked_by = NULL, updated_at = now()
		WHERE status = $2 AND locked_at < now() - make_interval(secs => $3)
	`, OutboxStatusPending, OutboxStatusSending, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanOutbox(row pgx.Row) (models.OutboxEvent, error) {
	var event models.OutboxEvent
	var headers []byte
	err := row.Scan(
		&event.EventID, &event.SourceEventID, &event.AggregateType, &event.AggregateID, &event.Topic, &event.Key, &event.Payload, &headers,
		&event.Status, &event.Attempts, &event.NextRetryAt, &event.LockedAt, &event.LockedBy, &event.LastError,
		&event.CreatedAt, &event.UpdatedAt, &event.PublishedAt,
	)
	if err != nil {
		return event, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &event.Headers); err != nil {
			return event, err
		}
	}
	return event, nil
}
