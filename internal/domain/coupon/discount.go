package coupon

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateDiscount returns the amount the coupon takes off orderTotal.
//
// Totals below the coupon minimum earn nothing. Percentage discounts are
// clamped to MaxDiscount when one is set. The result never exceeds
// orderTotal and is rounded to 2 decimal places.
func CalculateDiscount(c *Coupon, orderTotal decimal.Decimal) decimal.Decimal {
	if orderTotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		amount = orderTotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid {
			amount = decimal.Min(amount, c.MaxDiscount.Decimal)
		}
	default:
		amount = c.Value
	}

	amount = decimal.Min(amount, orderTotal)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}
