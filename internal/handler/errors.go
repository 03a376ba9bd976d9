package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/auth"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
	"github.com/xenking/kart-store/pkg/httpmiddleware"
)

// requestError is a malformed or invalid request body or parameter.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// statusOf maps a domain error to its HTTP status code.
func statusOf(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, order.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, address.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, coupon.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, product.ErrUnavailable),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrMinOrderNotMet),
		errors.Is(err, coupon.ErrInvalidRule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error response. Unexpected errors are logged and
// replaced by a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, code, "internal server error")
		return
	}
	httpmiddleware.WriteError(w, code, err.Error())
}
