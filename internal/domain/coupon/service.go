package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidRule is returned when a coupon definition is malformed.
var ErrInvalidRule = errors.New("invalid coupon definition")

// Quote is the outcome of an advisory coupon check against an order total.
type Quote struct {
	Coupon     *Coupon
	Discount   decimal.Decimal
	FinalTotal decimal.Decimal
}

// Service exposes coupon browsing, advisory validation and administration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Validate checks code against orderTotal without redeeming it. The result
// is advisory: redemption repeats the check inside the order transaction.
func (s *Service) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*Quote, error) {
	c, err := s.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := c.Check(s.now()); err != nil {
		return nil, err
	}
	if orderTotal.LessThan(c.MinOrderAmount) {
		return nil, &MinOrderError{Required: c.MinOrderAmount}
	}

	discount := CalculateDiscount(c, orderTotal)
	final := orderTotal.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return &Quote{
		Coupon:     c,
		Discount:   discount,
		FinalTotal: final.Round(2),
	}, nil
}

// List returns every coupon, including inactive and exhausted ones.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// ListAvailable returns only the coupons that are currently redeemable.
func (s *Service) ListAvailable(ctx context.Context) ([]Coupon, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := all[:0]
	for _, c := range all {
		if c.IsValid(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create validates and stores a new coupon. The code is normalized, and a
// zero cap or zero usage limit is treated as unset.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	if err := c.Normalize(); err != nil {
		return err
	}
	c.TimesUsed = 0
	c.Active = true

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return ErrDuplicateCode
		}
		return errors.Wrap(err, "create coupon")
	}
	return nil
}

// Delete removes a coupon by ID.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}

// Normalize canonicalizes the code and checks the discount rule. A zero
// cap or zero usage limit is cleared to mean unset.
func (c *Coupon) Normalize() error {
	c.Code = NormalizeCode(c.Code)
	if c.Code == "" {
		return errors.Wrap(ErrInvalidRule, "code is required")
	}
	if !c.DiscountType.Valid() {
		return errors.Wrapf(ErrInvalidRule, "unsupported discount type %q", c.DiscountType)
	}
	if !c.Value.IsPositive() {
		return errors.Wrap(ErrInvalidRule, "discount value must be positive")
	}
	if c.DiscountType == DiscountPercent && c.Value.GreaterThan(hundred) {
		return errors.Wrap(ErrInvalidRule, "percentage cannot exceed 100")
	}
	if c.MinOrderAmount.IsNegative() {
		return errors.Wrap(ErrInvalidRule, "minimum order amount cannot be negative")
	}
	if c.MaxDiscount.Valid && !c.MaxDiscount.Decimal.IsPositive() {
		c.MaxDiscount = decimal.NullDecimal{}
	}
	if c.UsageLimit != nil && *c.UsageLimit <= 0 {
		c.UsageLimit = nil
	}
	return nil
}

// MinOrderError reports that an order total is below the coupon minimum.
type MinOrderError struct {
	Required decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return "minimum order amount of " + e.Required.StringFixed(2) + " required to use this coupon"
}

func (e *MinOrderError) Unwrap() error {
	return ErrMinOrderNotMet
}
