package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RUMRepo is the optional durable sink for real-user-monitoring events.
// spec.md §9 leaves whether RUM should be durable as an explicit open
// question; this repo exists so internal/observability can be wired to
// either this store or its default in-memory ring buffer without a
// signature change. See DESIGN.md's Open Question decision.
type RUMRepo struct {
	store *Store
}

// NewRUMRepo constructs a RUMRepo bound to store.
func NewRUMRepo(store *Store) *RUMRepo {
	return &RUMRepo{store: store}
}

// Insert records one RUM event.
func (r *RUMRepo) Insert(ctx context.Context, kind, payloadJSON string, occurredAt time.Time) error {
	_, err := r.store.Run(ctx, `
		INSERT INTO rum_events (id, kind, payload_json, occurred_at)
		VALUES ($1,$2,$3,$4)`,
		[]any{uuid.NewString(), kind, payloadJSON, occurredAt})
	return err
}

// DeleteOlderThan purges events older than cutoff, used by a periodic
// retention sweep.
func (r *RUMRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.store.Run(ctx, `DELETE FROM rum_events WHERE occurred_at < $1`, []any{cutoff})
	return result.Changes, err
}
