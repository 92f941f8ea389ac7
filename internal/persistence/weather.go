package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// WeatherCacheRepo owns the weather_cache table, the durable backing
// store behind the Cache Fabric's in-memory layer for weather payloads.
type WeatherCacheRepo struct {
	store *Store
}

// NewWeatherCacheRepo constructs a WeatherCacheRepo bound to store.
func NewWeatherCacheRepo(store *Store) *WeatherCacheRepo {
	return &WeatherCacheRepo{store: store}
}

// Get returns the unexpired cached analysis for (region, alias, year), or
// nil if none exists or it has expired.
func (r *WeatherCacheRepo) Get(ctx context.Context, region, alias string, year int) (*domain.WeatherAnalysis, error) {
	var analysis *domain.WeatherAnalysis
	var scanErr error
	err := r.store.Get(ctx, `
		SELECT payload FROM weather_cache
		WHERE region = $1 AND alias = $2 AND year = $3 AND expires_at > now()`,
		[]any{region, alias, year}, func(row *sql.Row) error {
			var payload string
			if scanErr = row.Scan(&payload); scanErr != nil {
				return scanErr
			}
			var a domain.WeatherAnalysis
			if scanErr = json.Unmarshal([]byte(payload), &a); scanErr != nil {
				return scanErr
			}
			analysis = &a
			return nil
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// Put persists analysis with the given TTL, upserting on (region, alias, year).
func (r *WeatherCacheRepo) Put(ctx context.Context, region, alias string, year int, analysis *domain.WeatherAnalysis, ttl time.Duration) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.store.Run(ctx, `
		INSERT INTO weather_cache (id, region, alias, year, payload, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
		ON CONFLICT (region, alias, year)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		[]any{uuid.NewString(), region, alias, year, string(payload), now.Add(ttl), now})
	return err
}
