package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// WineRepo owns the wines, wine_aliases, and vintages tables.
type WineRepo struct {
	store *Store
}

// NewWineRepo constructs a WineRepo bound to store.
func NewWineRepo(store *Store) *WineRepo {
	return &WineRepo{store: store}
}

func scanWine(row interface{ Scan(...any) error }) (*domain.Wine, error) {
	var w domain.Wine
	var grapes pq.StringArray
	if err := row.Scan(&w.ID, &w.Name, &w.Producer, &w.Region, &w.Country, &w.WineType,
		&grapes, &w.Style, &w.TastingNotes, &w.StorageHints, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.GrapeVarieties = []string(grapes)
	return &w, nil
}

// GetWine fetches a wine by id. Returns domain.ErrWineNotFound when absent.
func (r *WineRepo) GetWine(ctx context.Context, id string) (*domain.Wine, error) {
	var wine *domain.Wine
	var scanErr error
	err := r.store.Get(ctx, `
		SELECT id, name, producer, region, country, wine_type, grape_varieties,
		       style, tasting_notes, storage_hints, created_at, updated_at
		FROM wines WHERE id = $1`, []any{id}, func(row *sql.Row) error {
		wine, scanErr = scanWine(row)
		return scanErr
	})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, domain.ErrWineNotFound
	}
	if err != nil {
		return nil, err
	}
	return wine, nil
}

// CreateWine inserts a new wine row, generating an id if absent.
func (r *WineRepo) CreateWine(ctx context.Context, w *domain.Wine) (*domain.Wine, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	_, err := r.store.Run(ctx, `
		INSERT INTO wines (id, name, producer, region, country, wine_type, grape_varieties,
		                    style, tasting_notes, storage_hints, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		[]any{w.ID, w.Name, w.Producer, w.Region, w.Country, w.WineType,
			pq.StringArray(w.GrapeVarieties), w.Style, w.TastingNotes, w.StorageHints,
			w.CreatedAt, w.UpdatedAt})
	if err != nil {
		return nil, fmt.Errorf("create wine: %w", err)
	}
	return w, nil
}

// FindWineByNameProducer looks up a wine by exact name+producer, used when
// receiving inventory to decide whether a new Wine must be created.
func (r *WineRepo) FindWineByNameProducer(ctx context.Context, name, producer string) (*domain.Wine, error) {
	var wine *domain.Wine
	var scanErr error
	err := r.store.Get(ctx, `
		SELECT id, name, producer, region, country, wine_type, grape_varieties,
		       style, tasting_notes, storage_hints, created_at, updated_at
		FROM wines WHERE lower(name) = lower($1) AND lower(producer) = lower($2)`,
		[]any{name, producer}, func(row *sql.Row) error {
			wine, scanErr = scanWine(row)
			return scanErr
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, domain.ErrWineNotFound
	}
	if err != nil {
		return nil, err
	}
	return wine, nil
}

// ListAvailableWines returns wines with at least one stock row where
// quantity > 0, optionally filtered by region and/or wine type. Only wine
// columns are returned; vintages are fetched separately (GetLatestVintage).
func (r *WineRepo) ListAvailableWines(ctx context.Context, region string, wineType domain.WineType) ([]*domain.Wine, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT DISTINCT w.id, w.name, w.producer, w.region, w.country, w.wine_type,
		       w.grape_varieties, w.style, w.tasting_notes, w.storage_hints,
		       w.created_at, w.updated_at
		FROM wines w
		JOIN vintages v ON v.wine_id = w.id
		JOIN stock s ON s.vintage_id = v.id
		WHERE s.quantity > 0`)
	args := []any{}
	idx := 1
	if region != "" {
		idx++
		query.WriteString(fmt.Sprintf(" AND lower(w.region) = lower($%d)", idx-1))
		args = append(args, region)
	}
	if wineType != "" {
		idx++
		query.WriteString(fmt.Sprintf(" AND w.wine_type = $%d", idx-1))
		args = append(args, wineType)
	}

	var wines []*domain.Wine
	err := r.store.All(ctx, query.String(), args, func(rows *sql.Rows) error {
		w, err := scanWine(rows)
		if err != nil {
			return err
		}
		wines = append(wines, w)
		return nil
	})
	return wines, err
}

func scanVintage(row interface{ Scan(...any) error }) (*domain.Vintage, error) {
	var v domain.Vintage
	var quality, weather, critic sql.NullFloat64
	var peakStart, peakEnd sql.NullInt64
	var enrichedAt sql.NullTime
	if err := row.Scan(&v.ID, &v.WineID, &v.Year, &quality, &weather, &critic,
		&peakStart, &peakEnd, &v.WeatherJSON, &v.ProcurementJSON, &v.NotesText,
		&enrichedAt, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if quality.Valid {
		v.QualityScore = &quality.Float64
	}
	if weather.Valid {
		v.WeatherScore = &weather.Float64
	}
	if critic.Valid {
		v.CriticScore = &critic.Float64
	}
	if peakStart.Valid {
		n := int(peakStart.Int64)
		v.PeakDrinkingStart = &n
	}
	if peakEnd.Valid {
		n := int(peakEnd.Int64)
		v.PeakDrinkingEnd = &n
	}
	if enrichedAt.Valid {
		v.EnrichedAt = &enrichedAt.Time
	}
	return &v, nil
}

const vintageColumns = `id, wine_id, year, quality_score, weather_score, critic_score,
	       peak_drinking_start, peak_drinking_end, weather_json, procurement_json,
	       notes_text, enriched_at, created_at, updated_at`

// GetVintage fetches a vintage by id.
func (r *WineRepo) GetVintage(ctx context.Context, id string) (*domain.Vintage, error) {
	var v *domain.Vintage
	var scanErr error
	err := r.store.Get(ctx, `SELECT `+vintageColumns+` FROM vintages WHERE id = $1`,
		[]any{id}, func(row *sql.Row) error {
			v, scanErr = scanVintage(row)
			return scanErr
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, domain.ErrVintageNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetOrCreateVintage returns the (wineID, year) vintage, creating it with
// null scores if this is the first inventory receipt for that year.
func (r *WineRepo) GetOrCreateVintage(ctx context.Context, wineID string, year int) (*domain.Vintage, error) {
	var v *domain.Vintage
	var scanErr error
	err := r.store.Get(ctx, `SELECT `+vintageColumns+` FROM vintages WHERE wine_id = $1 AND year = $2`,
		[]any{wineID, year}, func(row *sql.Row) error {
			v, scanErr = scanVintage(row)
			return scanErr
		})
	if err == nil && scanErr == nil {
		return v, nil
	}
	if err != sql.ErrNoRows && scanErr != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = r.store.Run(ctx, `
		INSERT INTO vintages (id, wine_id, year, weather_json, procurement_json, notes_text, created_at, updated_at)
		VALUES ($1,$2,$3,'','','',$4,$4)
		ON CONFLICT (wine_id, year) DO NOTHING`,
		[]any{id, wineID, year, now})
	if err != nil {
		return nil, fmt.Errorf("create vintage: %w", err)
	}
	return r.GetOrCreateVintage(ctx, wineID, year)
}

// GetLatestVintage returns the most recent vintage for wineID, used by the
// Pairing Engine when scoring candidates that don't pin a specific year.
func (r *WineRepo) GetLatestVintage(ctx context.Context, wineID string) (*domain.Vintage, error) {
	var v *domain.Vintage
	var scanErr error
	err := r.store.Get(ctx, `SELECT `+vintageColumns+` FROM vintages WHERE wine_id = $1 ORDER BY year DESC LIMIT 1`,
		[]any{wineID}, func(row *sql.Row) error {
			v, scanErr = scanVintage(row)
			return scanErr
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, domain.ErrVintageNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateVintageEnrichment persists the Vintage Intelligence enrichment
// result idempotently. Best-effort: errors here must never fail the
// inventory receive that triggered enrichment.
func (r *WineRepo) UpdateVintageEnrichment(ctx context.Context, vintageID string, qualityScore, weatherScore float64, weatherJSON, procurementJSON string) error {
	now := time.Now().UTC()
	_, err := r.store.Run(ctx, `
		UPDATE vintages
		SET quality_score = $2, weather_score = $3, weather_json = $4,
		    procurement_json = $5, enriched_at = $6, updated_at = $6
		WHERE id = $1`,
		[]any{vintageID, qualityScore, weatherScore, weatherJSON, procurementJSON, now})
	return err
}
