package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// WasProcessed reports whether an event with the given dedup key has already
// been handled. There is no unique constraint on the key, so concurrent
// deliveries of the same event can race between this check and MarkProcessed.
func (r *EventRepository) WasProcessed(ctx context.Context, provider, eventType, eventID string) (bool, error) {
	query := `SELECT id FROM processed_events WHERE provider = $1 AND event_type = $2 AND event_id = $3 LIMIT 1`

	var id int64
	err := r.pool.QueryRow(ctx, query, provider, eventType, eventID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "querying processed event")
	}
	return true, nil
}

func (r *EventRepository) MarkProcessed(ctx context.Context, provider, eventType, eventID string, payload []byte) error {
	query := `INSERT INTO processed_events (provider, event_type, event_id, payload) VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, provider, eventType, eventID, payload)
	return errors.Wrap(err, "inserting processed event")
}
