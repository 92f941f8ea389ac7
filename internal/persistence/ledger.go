package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// LedgerRepo owns the stock and ledger_entries tables. All mutating
// methods must be called inside Store.WithTransaction; GetStockForUpdate
// takes the row lock that serializes concurrent writers per spec.md §4.1.
type LedgerRepo struct {
	store *Store
}

// NewLedgerRepo constructs a LedgerRepo bound to store.
func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func scanStock(row interface{ Scan(...any) error }) (*domain.Stock, error) {
	var s domain.Stock
	if err := row.Scan(&s.ID, &s.VintageID, &s.Location, &s.Quantity, &s.ReservedQuantity,
		&s.CostPerBottle, &s.CurrentValue, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

const stockColumns = `id, vintage_id, location, quantity, reserved_quantity, cost_per_bottle, current_value, created_at, updated_at`

// GetStockForUpdate locks and returns the (vintage, location) stock row,
// or nil without error if no row exists yet (first receipt at a
// location). Must be called within a transaction to hold the lock.
func (r *LedgerRepo) GetStockForUpdate(ctx context.Context, vintageID, location string) (*domain.Stock, error) {
	var stock *domain.Stock
	var scanErr error
	err := r.store.Get(ctx, `SELECT `+stockColumns+` FROM stock WHERE vintage_id = $1 AND location = $2 FOR UPDATE`,
		[]any{vintageID, location}, func(row *sql.Row) error {
			stock, scanErr = scanStock(row)
			return scanErr
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// GetStock returns the (vintage, location) stock row without locking,
// for read-only API responses. Returns nil without error if no row exists.
func (r *LedgerRepo) GetStock(ctx context.Context, vintageID, location string) (*domain.Stock, error) {
	var stock *domain.Stock
	var scanErr error
	err := r.store.Get(ctx, `SELECT `+stockColumns+` FROM stock WHERE vintage_id = $1 AND location = $2`,
		[]any{vintageID, location}, func(row *sql.Row) error {
			stock, scanErr = scanStock(row)
			return scanErr
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// ListStockByVintage returns every stock row for a vintage across locations.
func (r *LedgerRepo) ListStockByVintage(ctx context.Context, vintageID string) ([]*domain.Stock, error) {
	var stocks []*domain.Stock
	err := r.store.All(ctx, `SELECT `+stockColumns+` FROM stock WHERE vintage_id = $1 ORDER BY location ASC`,
		[]any{vintageID}, func(rows *sql.Rows) error {
			s, err := scanStock(rows)
			if err != nil {
				return err
			}
			stocks = append(stocks, s)
			return nil
		})
	return stocks, err
}

// UpsertStock creates the row on first receipt at a location, or updates
// quantity/reserved/cost on an existing row.
func (r *LedgerRepo) UpsertStock(ctx context.Context, s *domain.Stock) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	if s.ID == "" {
		s.ID = uuid.NewString()
		s.CreatedAt = now
		_, err := r.store.Run(ctx, `
			INSERT INTO stock (id, vintage_id, location, quantity, reserved_quantity,
			                    cost_per_bottle, current_value, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			[]any{s.ID, s.VintageID, s.Location, s.Quantity, s.ReservedQuantity,
				s.CostPerBottle, s.CurrentValue, s.CreatedAt, s.UpdatedAt})
		return err
	}

	_, err := r.store.Run(ctx, `
		UPDATE stock SET quantity = $2, reserved_quantity = $3, cost_per_bottle = $4,
		                  current_value = $5, updated_at = $6
		WHERE id = $1`,
		[]any{s.ID, s.Quantity, s.ReservedQuantity, s.CostPerBottle, s.CurrentValue, s.UpdatedAt})
	return err
}

// AppendLedgerEntry writes one immutable ledger row.
func (r *LedgerRepo) AppendLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.store.Run(ctx, `
		INSERT INTO ledger_entries (id, entry_type, vintage_id, location, other_location,
		                             quantity, unit_cost, reference_id, correlation_id,
		                             notes, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		[]any{e.ID, e.Type, e.VintageID, e.Location, e.OtherLocation, e.Quantity,
			e.UnitCost, e.ReferenceID, e.CorrelationID, e.Notes, e.Actor, e.CreatedAt})
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries returns every entry for a vintage in chronological
// order, used by ledger-conservation tests and audit views.
func (r *LedgerRepo) ListLedgerEntries(ctx context.Context, vintageID string) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.store.All(ctx, `
		SELECT id, entry_type, vintage_id, location, other_location, quantity, unit_cost,
		       reference_id, correlation_id, notes, actor, created_at
		FROM ledger_entries WHERE vintage_id = $1 ORDER BY created_at ASC`,
		[]any{vintageID}, func(rows *sql.Rows) error {
			var e domain.LedgerEntry
			var unitCost sql.NullFloat64
			if err := rows.Scan(&e.ID, &e.Type, &e.VintageID, &e.Location, &e.OtherLocation,
				&e.Quantity, &unitCost, &e.ReferenceID, &e.CorrelationID, &e.Notes, &e.Actor, &e.CreatedAt); err != nil {
				return err
			}
			if unitCost.Valid {
				e.UnitCost = &unitCost.Float64
			}
			entries = append(entries, &e)
			return nil
		})
	return entries, err
}
