package domain

import "errors"

// Sentinel errors returned by CORE logic. These are plain Go errors;
// translation to infrastructure/errors.ServiceError happens only at the
// dispatcher/HTTP boundary, never inside domain or the CORE subsystems.
var (
	// Inventory Ledger
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrStockNotFound     = errors.New("stock row not found")
	ErrLowOCRConfidence  = errors.New("ocr confidence too low")
	ErrIntakeUnparseable = errors.New("intake could not be parsed")

	// Pairing Engine
	ErrDishRequired    = errors.New("dish is required")
	ErrAINotConfigured = errors.New("ai provider not configured")
	ErrAIUnavailable   = errors.New("ai provider unavailable")

	// Vintage / Weather
	ErrWineNotFound    = errors.New("wine not found")
	ErrVintageNotFound = errors.New("vintage not found")

	// Experiments
	ErrExperimentNotFound       = errors.New("experiment not found")
	ErrVariantNotFound          = errors.New("variant not found")
	ErrAssignmentNotFound       = errors.New("assignment not found")
	ErrAnalysisNotFound         = errors.New("analysis not found")
	ErrInvalidExperimentState   = errors.New("invalid experiment lifecycle transition")
	ErrInsufficientVariants     = errors.New("experiment requires at least two variants")
	ErrMissingControlVariant    = errors.New("experiment requires exactly one control variant")
	ErrAllocationMustSumTo100   = errors.New("variant allocations must sum to 100")

	// Agent/Tool Dispatcher
	ErrToolNotFound            = errors.New("tool not found")
	ErrForbidden               = errors.New("action forbidden for role")
	ErrConfirmRequired         = errors.New("confirm required for non-dry-run mutation")
	ErrValidationFailed        = errors.New("parameter validation failed")
	ErrIdempotencyKeyRequired  = errors.New("idempotency key required")
	ErrIdempotencyKeyTooShort  = errors.New("idempotency key must be at least 16 characters")

	// Cross-cutting
	ErrCanceled = errors.New("operation canceled")
)
