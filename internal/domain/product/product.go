package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable is returned when a product is inactive or sold out.
	ErrUnavailable = errors.New("product unavailable")
	// ErrInsufficientStock is returned when stock cannot cover a quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidPrice is returned when a product has a non-positive price.
	ErrInvalidPrice = errors.New("invalid product price")
	// ErrStockConflict is returned by DecrementStock when the remaining
	// stock cannot cover the requested quantity.
	ErrStockConflict = errors.New("stock would go negative")
)

// NotFoundError reports a missing product by id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnavailableError reports a product that cannot be sold right now.
type UnavailableError struct {
	ID   int64
	Name string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %q is not available", e.Name)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// InsufficientStockError reports a requested quantity above current stock.
type InsufficientStockError struct {
	ID        int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidPriceError reports a product whose price is not positive.
type InvalidPriceError struct {
	ID   int64
	Name string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price for product %q", e.Name)
}

func (e *InvalidPriceError) Unwrap() error { return ErrInvalidPrice }

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available reports whether the product can be added to a cart or ordered.
func (p *Product) Available() bool {
	return p.Active && p.Stock > 0
}

// CheckOrderable returns a typed error when qty units of p cannot be sold:
// the product must be available, have enough stock, and a positive price.
func (p *Product) CheckOrderable(qty int) error {
	if !p.Available() {
		return &UnavailableError{ID: p.ID, Name: p.Name}
	}
	if p.Stock < qty {
		return &InsufficientStockError{ID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock}
	}
	if !p.Price.IsPositive() {
		return &InvalidPriceError{ID: p.ID, Name: p.Name}
	}
	return nil
}

// StockStatus summarises stock for catalog listings.
func (p *Product) StockStatus() string {
	switch {
	case !p.Active:
		return "unavailable"
	case p.Stock == 0:
		return "out_of_stock"
	case p.Stock < 10:
		return "low_stock"
	default:
		return "in_stock"
	}
}

// Repository defines catalog reads and the stock mutation used at checkout.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	// Lock returns the product and holds it against concurrent stock changes
	// until the surrounding transaction ends.
	Lock(ctx context.Context, id int64) (*Product, error)
	// DecrementStock subtracts qty from the product's stock. It never lets
	// stock go negative.
	DecrementStock(ctx context.Context, id int64, qty int) error
}
