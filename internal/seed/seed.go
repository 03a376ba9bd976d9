// Package seed holds the demo dataset loaded by seed-db and by the
// in-memory server.
package seed

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
)

// Demo user ids. Users are owned by the identity provider; only their ids
// appear in this store.
const (
	UserID  int64 = 1
	AdminID int64 = 2
	JaneID  int64 = 3
)

type item struct {
	name        string
	description string
	price       string
	stock       int
}

var catalog = []item{
	{"iPhone 15 Pro Max", "Flagship smartphone with A17 Pro chip and titanium design.", "1199.99", 45},
	{"Sony WH-1000XM5 Headphones", "Noise cancelling headphones with 30-hour battery.", "349.99", 85},
	{"Logitech MX Master 3S", "Wireless mouse with 8K DPI sensor and MagSpeed scroll.", "99.99", 120},
	{"Canon EOS R5 Camera", "Mirrorless camera with 45MP sensor and 8K video.", "3899.00", 12},
	{"Levi's 501 Original Fit Jeans", "Button fly, straight leg, 100% cotton denim.", "69.50", 200},
	{"Ray-Ban Aviator Classic", "Gold metal frame with crystal green G-15 lenses.", "161.00", 75},
	{"KitchenAid Stand Mixer", "Tilt-head stand mixer with 5-quart stainless steel bowl.", "379.99", 40},
	{"Instant Pot Duo 7-in-1", "Pressure cooker, slow cooker and rice cooker in one.", "89.95", 90},
	{"Hydro Flask 32oz Bottle", "Double-wall vacuum insulated stainless steel bottle.", "44.95", 150},
	{"Atomic Habits by James Clear", "An easy and proven way to build good habits.", "16.99", 300},
	{"Clean Code by Robert C. Martin", "A handbook of agile software craftsmanship.", "39.99", 80},
	{"Ordinary Niacinamide 10% + Zinc 1%", "High-strength vitamin and mineral blemish formula.", "6.50", 500},
	{"Garmin Fenix 7X Pro", "Multisport GPS watch with solar charging.", "899.99", 4},
	{"Peloton Bike+", "Indoor cycling bike with rotating HD touchscreen.", "2495.00", 0},
}

// Products returns the demo catalog with ids starting at 1.
func Products() []product.Product {
	out := make([]product.Product, 0, len(catalog))
	for i, it := range catalog {
		out = append(out, product.Product{
			ID:          int64(i + 1),
			Name:        it.name,
			Description: it.description,
			Price:       decimal.RequireFromString(it.price),
			Stock:       it.stock,
			Active:      true,
		})
	}
	return out
}

// Coupons returns the demo coupons. Expiry times are relative to now.
func Coupons(now time.Time) []coupon.Coupon {
	days := func(n int) *time.Time {
		t := now.Add(time.Duration(n) * 24 * time.Hour).UTC().Truncate(time.Second)
		return &t
	}
	limit := func(n int) *int { return &n }
	money := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	capped := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(money(s)) }

	return []coupon.Coupon{
		{
			Code: "WELCOME10", DiscountType: coupon.DiscountPercent, Value: money("10"),
			MinOrderAmount: money("50"), MaxDiscount: capped("100"), UsageLimit: limit(1000),
			Active: true, ExpiresAt: days(90),
		},
		{
			Code: "SAVE20", DiscountType: coupon.DiscountPercent, Value: money("20"),
			MinOrderAmount: money("5"), MaxDiscount: capped("3"),
			Active: true,
		},
		{
			Code: "FLAT50", DiscountType: coupon.DiscountFlat, Value: money("50"),
			MinOrderAmount: money("200"), UsageLimit: limit(200),
			Active: true, ExpiresAt: days(30),
		},
		{
			Code: "SUMMER25", DiscountType: coupon.DiscountPercent, Value: money("25"),
			MinOrderAmount: money("75"), MaxDiscount: capped("150"), UsageLimit: limit(300),
			Active: true, ExpiresAt: days(45),
		},
		{
			Code: "SPRING15", DiscountType: coupon.DiscountPercent, Value: money("15"),
			MinOrderAmount: money("0"),
			Active: true, ExpiresAt: days(-10),
		},
	}
}

// Addresses returns the demo addresses. The first address of each user is
// the default.
func Addresses() []address.Address {
	return []address.Address{
		{
			UserID: UserID, Label: "Home", FullName: "John Doe", Phone: "+1-555-0101",
			Line1: "123 Main Street", Line2: "Apt 4B",
			City: "New York", State: "NY", ZipCode: "10001", Country: "US", Default: true,
		},
		{
			UserID: UserID, Label: "Office", FullName: "John Doe", Phone: "+1-555-0101",
			Line1: "456 Business Ave", Line2: "Suite 200",
			City: "San Francisco", State: "CA", ZipCode: "94105", Country: "US",
		},
		{
			UserID: JaneID, Label: "Home", FullName: "Jane Smith", Phone: "+1-555-0102",
			Line1: "789 Oak Street",
			City: "Chicago", State: "IL", ZipCode: "60601", Country: "US", Default: true,
		},
	}
}

// Cart returns the demo cart lines of UserID.
func Cart() []cart.Line {
	return []cart.Line{
		{UserID: UserID, ProductID: 3, Quantity: 1},
		{UserID: UserID, ProductID: 10, Quantity: 2},
	}
}

// Accounts stores the demo addresses and cart. Users that already have
// addresses are left untouched, so running it twice is harmless.
func Accounts(ctx context.Context, st order.Store) error {
	seen := make(map[int64]bool)
	for _, a := range Addresses() {
		if _, ok := seen[a.UserID]; !ok {
			existing, err := st.Addresses().List(ctx, a.UserID)
			if err != nil {
				return errors.Wrap(err, "list addresses")
			}
			seen[a.UserID] = len(existing) == 0
		}
		if !seen[a.UserID] {
			continue
		}
		if err := st.Addresses().Create(ctx, &a); err != nil {
			return errors.Wrapf(err, "create address %q", a.Label)
		}
	}

	for _, line := range Cart() {
		if err := st.Carts().Upsert(ctx, line); err != nil {
			return errors.Wrapf(err, "add product %d to cart", line.ProductID)
		}
	}
	return nil
}
