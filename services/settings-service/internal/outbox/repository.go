package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/availo-hq/availo/libs/db"
	otelx "github.com/availo-hq/availo/libs/otel"
)

// Repository stores settings-change events next to the writes that caused
// them, inside the same transaction, and drains committed events for the
// publisher.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records evt in the caller's transaction. The current trace context
// rides along so the eventual Kafka message links back to the HTTP request
// that changed the settings.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

// Pending is a committed settings-change event awaiting publication.
type Pending struct {
	ID          int64
	EventID     string
	OwnerID     string
	EventType   string
	Payload     []byte
	Traceparent string
	Tracestate  string
}

// Drain locks up to limit unpublished events in insertion order, hands each
// to publish, and marks the whole batch published in one transaction. SKIP
// LOCKED keeps concurrent service replicas from double-sending a batch; a
// publish error rolls the marks back, so delivery is at-least-once and the
// consumer side must tolerate replays.
func (r *Repository) Drain(ctx context.Context, limit int, publish func(Pending) error) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_id, event_type, payload, traceparent, tracestate
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, err
	}
	batch := make([]Pending, 0, limit)
	for rows.Next() {
		var p Pending
		if err := rows.Scan(&p.ID, &p.EventID, &p.OwnerID, &p.EventType, &p.Payload, &p.Traceparent, &p.Tracestate); err != nil {
			rows.Close()
			return 0, err
		}
		batch = append(batch, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(batch))
	for _, p := range batch {
		if err := publish(p); err != nil {
			return 0, err
		}
		ids = append(ids, p.ID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)
	`, ids); err != nil {
		return 0, err
	}
	return len(batch), tx.Commit(ctx)
}
