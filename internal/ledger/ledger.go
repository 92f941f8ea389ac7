// Package ledger implements the Inventory Ledger: consume/receive/move/
// reserve against (vintage, location) stock rows with atomic invariant
// checks and an append-only journal.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// EnrichFunc triggers Vintage Intelligence asynchronously after a
// receive; it must never block the caller or propagate its own errors
// into the receive response beyond the returned EnrichmentError.
type EnrichFunc func(ctx context.Context, vintageID string)

// Ledger implements the four inventory operations over a Store.
type Ledger struct {
	store   *persistence.Store
	repo    *persistence.LedgerRepo
	enrich  EnrichFunc
	enrichSem chan struct{}
}

// New constructs a Ledger. enrich may be nil to disable post-receive
// enrichment (e.g. in tests).
func New(store *persistence.Store, repo *persistence.LedgerRepo, enrich EnrichFunc) *Ledger {
	return &Ledger{
		store:     store,
		repo:      repo,
		enrich:    enrich,
		enrichSem: make(chan struct{}, 4),
	}
}

// Consume decrements quantity at a location and appends an OUT entry.
// qty == 0 is a valid no-op. Fails with ErrInsufficientStock when
// available(row) < qty.
func (l *Ledger) Consume(ctx context.Context, vintageID, location string, qty int, notes, actor string) error {
	if qty < 0 {
		return domain.ErrInvalidQuantity
	}
	if qty == 0 {
		return nil
	}
	return l.store.WithTransaction(ctx, func(ctx context.Context) error {
		stock, err := l.repo.GetStockForUpdate(ctx, vintageID, location)
		if err != nil {
			return err
		}
		if stock == nil || stock.Available() < qty {
			return domain.ErrInsufficientStock
		}
		stock.Quantity -= qty
		if err := l.repo.UpsertStock(ctx, stock); err != nil {
			return err
		}
		return l.repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
			Type:      domain.LedgerEntryOut,
			VintageID: vintageID,
			Location:  location,
			Quantity:  qty,
			Notes:     notes,
			Actor:     actor,
		})
	})
}

// ReceiveResult is the outcome of Receive, including a non-fatal
// enrichment error when Vintage Intelligence could not be triggered.
type ReceiveResult struct {
	Stock           *domain.Stock
	EnrichmentError string
}

// Receive upserts the stock row (creating it on first receipt at a
// location), increments quantity, optionally refreshes cost, appends an
// IN entry, and fires asynchronous enrichment without blocking.
func (l *Ledger) Receive(ctx context.Context, vintageID, location string, qty int, unitCost *float64, referenceID, notes, actor string) (*ReceiveResult, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var result ReceiveResult
	err := l.store.WithTransaction(ctx, func(ctx context.Context) error {
		stock, err := l.repo.GetStockForUpdate(ctx, vintageID, location)
		if err != nil {
			return err
		}
		if stock == nil {
			stock = &domain.Stock{VintageID: vintageID, Location: location}
		}
		stock.Quantity += qty
		if unitCost != nil {
			stock.CostPerBottle = *unitCost
			stock.CurrentValue = stock.CostPerBottle * float64(stock.Quantity)
		}
		if err := l.repo.UpsertStock(ctx, stock); err != nil {
			return err
		}
		if err := l.repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
			Type:        domain.LedgerEntryIn,
			VintageID:   vintageID,
			Location:    location,
			Quantity:    qty,
			UnitCost:    unitCost,
			ReferenceID: referenceID,
			Notes:       notes,
			Actor:       actor,
		}); err != nil {
			return err
		}
		result.Stock = stock
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.EnrichmentError = l.triggerEnrichment(vintageID)
	return &result, nil
}

// triggerEnrichment starts enrichment in the background and returns a
// non-empty message when it could not be started.
func (l *Ledger) triggerEnrichment(vintageID string) string {
	if l.enrich == nil {
		return ""
	}
	select {
	case l.enrichSem <- struct{}{}:
	default:
		return "enrichment not started: too many enrichments in flight"
	}
	go func() {
		defer func() { <-l.enrichSem }()
		defer func() { recover() }()
		l.enrich(context.Background(), vintageID)
	}()
	return ""
}

// Move decrements at from and upserts-increments at to within one
// transaction, appending two correlated MOVE entries. Moving to the
// same location is a no-op that appends no ledger rows.
func (l *Ledger) Move(ctx context.Context, vintageID, from, to string, qty int, notes, actor string) error {
	if qty < 0 {
		return domain.ErrInvalidQuantity
	}
	if qty == 0 {
		return nil
	}
	if from == to {
		return nil
	}

	correlationID := uuid.NewString()
	return l.store.WithTransaction(ctx, func(ctx context.Context) error {
		fromStock, err := l.repo.GetStockForUpdate(ctx, vintageID, from)
		if err != nil {
			return err
		}
		if fromStock == nil || fromStock.Available() < qty {
			return domain.ErrInsufficientStock
		}
		toStock, err := l.repo.GetStockForUpdate(ctx, vintageID, to)
		if err != nil {
			return err
		}
		if toStock == nil {
			toStock = &domain.Stock{VintageID: vintageID, Location: to}
		}

		fromStock.Quantity -= qty
		toStock.Quantity += qty

		if err := l.repo.UpsertStock(ctx, fromStock); err != nil {
			return err
		}
		if err := l.repo.UpsertStock(ctx, toStock); err != nil {
			return err
		}

		if err := l.repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
			Type: domain.LedgerEntryMove, VintageID: vintageID, Location: from,
			OtherLocation: to, Quantity: qty, CorrelationID: correlationID, Notes: notes, Actor: actor,
		}); err != nil {
			return err
		}
		return l.repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
			Type: domain.LedgerEntryMove, VintageID: vintageID, Location: to,
			OtherLocation: from, Quantity: qty, CorrelationID: correlationID, Notes: notes, Actor: actor,
		})
	})
}

// Reserve increments reserved_quantity at a location and appends a
// RESERVE entry. Fails with ErrInsufficientStock when available(row) < qty.
func (l *Ledger) Reserve(ctx context.Context, vintageID, location string, qty int, notes, actor string) error {
	if qty < 0 {
		return domain.ErrInvalidQuantity
	}
	if qty == 0 {
		return nil
	}
	return l.store.WithTransaction(ctx, func(ctx context.Context) error {
		stock, err := l.repo.GetStockForUpdate(ctx, vintageID, location)
		if err != nil {
			return err
		}
		if stock == nil || stock.Available() < qty {
			return domain.ErrInsufficientStock
		}
		stock.ReservedQuantity += qty
		if err := l.repo.UpsertStock(ctx, stock); err != nil {
			return err
		}
		return l.repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
			Type:      domain.LedgerEntryReserve,
			VintageID: vintageID,
			Location:  location,
			Quantity:  qty,
			Notes:     notes,
			Actor:     actor,
		})
	})
}

// Unreserve decrements reserved_quantity, clamped at zero, and appends
// an UNRESERVE entry.
func (l *Ledger) Unreserve(ctx context.Context, vintageID, location string, qty int, notes, actor string) error {
	if qty < 0 {
		return domain.ErrInvalidQuantity
	}
	if qty == 0 {
		return nil
	}
	return l.store.WithTransaction(ctx, func(ctx context.Context) error {
		stock, err := l.repo.GetStockForUpdate(ctx, vintageID, location)
		if err != nil {
			return err
		}
		if stock == nil {
			return domain.ErrStockNotFound
		}
		if qty > stock.ReservedQuantity {
			qty = stock.ReservedQuantity
		}
		stock.ReservedQuantity -= qty
		if err := l.repo.UpsertStock(ctx, stock); err != nil {
			return err
		}
		return l.repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
			Type:      domain.LedgerEntryUnreserve,
			VintageID: vintageID,
			Location:  location,
			Quantity:  qty,
			Notes:     notes,
			Actor:     actor,
		})
	})
}

// ValidateQuantity is a shared guard for callers assembling requests
// before they reach the transactional operations above.
func ValidateQuantity(qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, qty)
	}
	return nil
}
