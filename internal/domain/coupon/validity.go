package coupon

import "time"

// Check reports why the coupon cannot be redeemed at now, or nil when it can.
// The returned error is one of ErrInactive, ErrUsageLimitReached or
// ErrExpired, all of which match ErrInvalidCoupon.
func (c *Coupon) Check(now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// IsValid reports whether the coupon may be redeemed at now.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.Check(now) == nil
}
