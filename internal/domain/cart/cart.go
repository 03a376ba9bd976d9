package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/product"
)

// ErrLineNotFound is returned when the user's cart has no line for a product.
var ErrLineNotFound = errors.New("item not in cart")

// ErrInvalidQuantity is returned for quantities below one.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is one (user, product, quantity) record. A user has at most one line
// per product.
type Line struct {
	UserID    int64
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// Entry is a cart line joined with the current state of its product.
// Product is nil when the product has been removed from the catalog.
type Entry struct {
	Line    Line
	Product *product.Product
}

// Subtotal is price times quantity using the product's current price.
func (e Entry) Subtotal() decimal.Decimal {
	if e.Product == nil {
		return decimal.Zero
	}
	return e.Product.Price.Mul(decimal.NewFromInt(int64(e.Line.Quantity)))
}

// Snapshot is the priced view of a user's cart.
type Snapshot struct {
	Entries   []Entry
	Total     decimal.Decimal
	ItemCount int
}

// NewSnapshot totals entries.
func NewSnapshot(entries []Entry) Snapshot {
	s := Snapshot{Entries: entries, Total: decimal.Zero}
	for _, e := range entries {
		s.Total = s.Total.Add(e.Subtotal())
		s.ItemCount += e.Line.Quantity
	}
	s.Total = s.Total.Round(2)
	return s
}

// Repository stores cart lines.
type Repository interface {
	// Lines returns the user's cart lines ordered by product id.
	Lines(ctx context.Context, userID int64) ([]Line, error)
	// Entries returns the user's cart lines joined with current product
	// state, ordered by product id.
	Entries(ctx context.Context, userID int64) ([]Entry, error)
	Get(ctx context.Context, userID, productID int64) (*Line, error)
	// Upsert creates the line or replaces its quantity.
	Upsert(ctx context.Context, line Line) error
	Delete(ctx context.Context, userID, productID int64) error
	// Clear removes every line owned by the user.
	Clear(ctx context.Context, userID int64) error
}
