package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// SupplierRepo owns suppliers and price_book.
type SupplierRepo struct {
	store *Store
}

// NewSupplierRepo constructs a SupplierRepo bound to store.
func NewSupplierRepo(store *Store) *SupplierRepo {
	return &SupplierRepo{store: store}
}

// UpsertPrice records or refreshes a (vintage, supplier) price quote.
func (r *SupplierRepo) UpsertPrice(ctx context.Context, p *domain.PriceBookEntry) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.LastUpdated = time.Now().UTC()
	_, err := r.store.Run(ctx, `
		INSERT INTO price_book (id, vintage_id, supplier_id, price_per_bottle, availability_status, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (vintage_id, supplier_id)
		DO UPDATE SET price_per_bottle = EXCLUDED.price_per_bottle,
		              availability_status = EXCLUDED.availability_status,
		              last_updated = EXCLUDED.last_updated`,
		[]any{p.ID, p.VintageID, p.SupplierID, p.PricePerBottle, p.AvailabilityStatus, p.LastUpdated})
	return err
}

// BestPrice returns the lowest in-stock quote for a vintage, or nil if none.
func (r *SupplierRepo) BestPrice(ctx context.Context, vintageID string) (*domain.PriceBookEntry, error) {
	var entry *domain.PriceBookEntry
	var scanErr error
	err := r.store.Get(ctx, `
		SELECT id, vintage_id, supplier_id, price_per_bottle, availability_status, last_updated
		FROM price_book
		WHERE vintage_id = $1 AND availability_status != $2
		ORDER BY price_per_bottle ASC LIMIT 1`,
		[]any{vintageID, domain.AvailabilityOut}, func(row *sql.Row) error {
			var p domain.PriceBookEntry
			if scanErr = row.Scan(&p.ID, &p.VintageID, &p.SupplierID, &p.PricePerBottle,
				&p.AvailabilityStatus, &p.LastUpdated); scanErr != nil {
				return scanErr
			}
			entry = &p
			return nil
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}
