package eventstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/dbx"
)

const schema = `
CREATE TABLE IF NOT EXISTS domain_events (
	global_seq     BIGSERIAL PRIMARY KEY,
	event_id       TEXT NOT NULL UNIQUE,
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	version        BIGINT NOT NULL,
	event_type     TEXT NOT NULL,
	actor_id       TEXT NOT NULL DEFAULT '',
	payload        JSONB NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (aggregate_id, version)
);
CREATE INDEX IF NOT EXISTS domain_events_type_idx ON domain_events (aggregate_type, global_seq);
`

// TxHook runs inside the append transaction after the events are
// inserted. It is how the outbox rows commit atomically with the events.
type TxHook func(ctx context.Context, tx pgx.Tx, events []es.Event) error

type Postgres struct {
	pool  *pgxpool.Pool
	hooks []TxHook
}

func NewPostgres(pool *pgxpool.Pool, hooks ...TxHook) *Postgres {
	return &Postgres{pool: pool, hooks: hooks}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) Append(ctx context.Context, aggregateID string, expectedVersion int64, events []es.Event) ([]es.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if err := checkVersions(aggregateID, expectedVersion, events); err != nil {
		return nil, err
	}

	out := make([]es.Event, len(events))
	err := dbx.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var current int64
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(version), 0) FROM domain_events WHERE aggregate_id = $1
		`, aggregateID).Scan(&current); err != nil {
			return err
		}
		if current != expectedVersion {
			return es.Conflict(aggregateID, expectedVersion, current)
		}

		for i, evt := range events {
			err := tx.QueryRow(ctx, `
				INSERT INTO domain_events (
					event_id, aggregate_id, aggregate_type, version, event_type, actor_id, payload, occurred_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING global_seq
			`, evt.EventID, evt.AggregateID, evt.AggregateType, evt.Version, evt.Type, evt.ActorID, []byte(evt.Payload), evt.OccurredAt).
				Scan(&evt.GlobalSeq)
			if err != nil {
				return err
			}
			out[i] = evt
		}

		for _, hook := range p.hooks {
			if err := hook(ctx, tx, out); err != nil {
				return fmt.Errorf("append hook: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent writer took the same version between our check and insert.
			return nil, es.Conflict(aggregateID, expectedVersion, expectedVersion+1)
		}
		return nil, err
	}
	return out, nil
}

func (p *Postgres) Load(ctx context.Context, aggregateID string) ([]es.Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT global_seq, event_id, aggregate_id, aggregate_type, version, event_type, actor_id, payload, occurred_at
		FROM domain_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// ReadAll pages through every stream in commit-sequence order. Sequence
// values are allocated before commit, so callers replaying a live store
// may observe gaps that fill in later; rebuilds run against a quiesced store.
func (p *Postgres) ReadAll(ctx context.Context, afterSeq int64, limit int) ([]es.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.pool.Query(ctx, `
		SELECT global_seq, event_id, aggregate_id, aggregate_type, version, event_type, actor_id, payload, occurred_at
		FROM domain_events
		WHERE global_seq > $1
		ORDER BY global_seq ASC
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]es.Event, error) {
	defer rows.Close()
	var out []es.Event
	for rows.Next() {
		var evt es.Event
		var payload []byte
		if err := rows.Scan(
			&evt.GlobalSeq, &evt.EventID, &evt.AggregateID, &evt.AggregateType, &evt.Version,
			&evt.Type, &evt.ActorID, &payload, &evt.OccurredAt,
		); err != nil {
			return nil, err
		}
		evt.Payload = payload
		evt.OccurredAt = evt.OccurredAt.UTC()
		out = append(out, evt)
	}
	return out, rows.Err()
}
