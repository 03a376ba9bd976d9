package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/product"
)

var (
	// ErrEmptyCart is returned when placing an order with nothing in the cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrAddressNotFound is returned when the requested shipping address
	// does not belong to the user.
	ErrAddressNotFound = errors.New("address not found")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrAccessDenied is returned when a user reads someone else's order.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidStatus is returned for status values outside the allow-list.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidPaymentMethod is returned for unknown payment methods.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// Product failures surfaced during placement.
	ErrProductNotFound    = product.ErrNotFound
	ErrProductUnavailable = product.ErrUnavailable
	ErrInsufficientStock  = product.ErrInsufficientStock
	ErrInvalidPrice       = product.ErrInvalidPrice

	// ErrInvalidCoupon is returned when a supplied code is unknown or
	// fails the coupon validity predicate.
	ErrInvalidCoupon = coupon.ErrInvalidCoupon
)

// InvalidStatusError carries the rejected status value.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

func (e *InvalidStatusError) Unwrap() error { return ErrInvalidStatus }
