package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRepo backs the Agent/Tool Dispatcher's replay guarantee:
// results for (capability, key, actor) are retained for at least 24h and
// replayed verbatim rather than re-executed.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo constructs an IdempotencyRepo bound to store.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

const idempotencyTTL = 24 * time.Hour

// Find returns the stored result JSON for a prior call with the same
// (capability, key, actor), or "" if none is on record or it has expired.
func (r *IdempotencyRepo) Find(ctx context.Context, capability, key, actor string) (string, bool, error) {
	var result string
	var found bool
	err := r.store.Get(ctx, `
		SELECT result_json FROM idempotency_keys
		WHERE capability = $1 AND idempotency_key = $2 AND actor = $3 AND expires_at > now()`,
		[]any{capability, key, actor}, func(row *sql.Row) error {
			if err := row.Scan(&result); err != nil {
				return err
			}
			found = true
			return nil
		})
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result, found, nil
}

// Store records the result of a mutating dispatch for replay.
func (r *IdempotencyRepo) Store(ctx context.Context, capability, key, actor, resultJSON string) error {
	now := time.Now().UTC()
	_, err := r.store.Run(ctx, `
		INSERT INTO idempotency_keys (id, capability, idempotency_key, actor, result_json, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (capability, idempotency_key, actor) DO NOTHING`,
		[]any{uuid.NewString(), capability, key, actor, resultJSON, now, now.Add(idempotencyTTL)})
	return err
}
