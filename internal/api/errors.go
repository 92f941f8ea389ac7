// Package api exposes the CORE subsystems (Inventory Ledger, Pairing
// Engine, Vintage Intelligence, Learning & Experimentation, the
// Agent/Tool Dispatcher, the Realtime Broadcaster, and Observability)
// over a thin chi-routed HTTP surface. Handlers never contain business
// logic; they decode, delegate, and translate.
package api

import (
	"errors"
	"net/http"

	svcerrors "github.com/cellarworks/cellar-intel/infrastructure/errors"
	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
	"github.com/cellarworks/cellar-intel/internal/domain"
)

// translate maps a CORE sentinel error to the ServiceError carrying the
// right HTTP status and code. Errors that don't match any sentinel
// become an opaque internal error; callers should log before calling
// this, since translate discards whatever diagnostic context err held.
func translate(err error) *svcerrors.ServiceError {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return svcerrors.New(svcerrors.ErrCodeConflict, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidQuantity):
		return svcerrors.New(svcerrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrStockNotFound),
		errors.Is(err, domain.ErrWineNotFound),
		errors.Is(err, domain.ErrVintageNotFound),
		errors.Is(err, domain.ErrExperimentNotFound),
		errors.Is(err, domain.ErrVariantNotFound),
		errors.Is(err, domain.ErrAssignmentNotFound),
		errors.Is(err, domain.ErrAnalysisNotFound):
		return svcerrors.New(svcerrors.ErrCodeNotFound, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrLowOCRConfidence), errors.Is(err, domain.ErrIntakeUnparseable):
		return svcerrors.New(svcerrors.ErrCodeInvalidInput, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrDishRequired):
		return svcerrors.New(svcerrors.ErrCodeMissingParameter, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAINotConfigured), errors.Is(err, domain.ErrAIUnavailable):
		return svcerrors.New(svcerrors.ErrCodeAIProviderError, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrInvalidExperimentState),
		errors.Is(err, domain.ErrInsufficientVariants),
		errors.Is(err, domain.ErrMissingControlVariant),
		errors.Is(err, domain.ErrAllocationMustSumTo100):
		return svcerrors.New(svcerrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrToolNotFound):
		return svcerrors.New(svcerrors.ErrCodeNotFound, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		return svcerrors.New(svcerrors.ErrCodeForbidden, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrConfirmRequired):
		return svcerrors.New(svcerrors.ErrCodeInvalidInput, err.Error(), http.StatusPreconditionRequired)
	case errors.Is(err, domain.ErrValidationFailed):
		return svcerrors.New(svcerrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrIdempotencyKeyRequired), errors.Is(err, domain.ErrIdempotencyKeyTooShort):
		return svcerrors.New(svcerrors.ErrCodeMissingParameter, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrCanceled):
		return svcerrors.New(svcerrors.ErrCodeTimeout, err.Error(), http.StatusGatewayTimeout)
	default:
		return svcerrors.Internal("request failed", err)
	}
}

// writeError translates err and writes the uniform error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := translate(err)
	httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}
