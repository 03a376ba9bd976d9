package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent takes a percentage of the order subtotal, optionally
	// capped by MaxDiscount.
	DiscountPercent DiscountType = "percent"
	// DiscountFlat takes a fixed amount off the order subtotal.
	DiscountFlat DiscountType = "flat"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercent || t == DiscountFlat
}

var (
	// ErrInvalidCoupon is returned when a coupon code cannot be redeemed,
	// either because it does not exist or because it fails the validity
	// predicate.
	ErrInvalidCoupon = errors.New("invalid or expired coupon")
	// ErrNotFound is returned by repositories when no coupon matches.
	ErrNotFound = errors.Wrap(ErrInvalidCoupon, "coupon not found")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.Wrap(ErrInvalidCoupon, "coupon is no longer active")
	// ErrUsageLimitReached is returned when the coupon has no redemptions left.
	ErrUsageLimitReached = errors.Wrap(ErrInvalidCoupon, "coupon has reached its usage limit")
	// ErrExpired is returned when the coupon's expiry time has passed.
	ErrExpired = errors.Wrap(ErrInvalidCoupon, "coupon has expired")
	// ErrMinOrderNotMet is returned by advisory validation when the order
	// total is below the coupon's minimum.
	ErrMinOrderNotMet = errors.New("minimum order amount not met")
	// ErrDuplicateCode is returned when creating a coupon whose code exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// Coupon is a redeemable discount rule.
type Coupon struct {
	ID             int64
	Code           string
	DiscountType   DiscountType
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	// MaxDiscount caps percentage discounts. Ignored for flat coupons.
	MaxDiscount decimal.NullDecimal
	// UsageLimit is nil for coupons that can be redeemed without limit.
	UsageLimit *int
	TimesUsed  int
	Active     bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// NormalizeCode returns the canonical (trimmed, upper-cased) form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	List(ctx context.Context) ([]Coupon, error)
	// FindByCode looks up a coupon by its normalized code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// LockByCode is FindByCode that also holds the row until the surrounding
	// transaction ends.
	LockByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUsage bumps the usage counter. It returns ErrUsageLimitReached
	// instead of exceeding the coupon's usage limit.
	IncrementUsage(ctx context.Context, id int64) error
	Create(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id int64) error
}
