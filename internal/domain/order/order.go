package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/address"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPlaced     Status = "PLACED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusPlaced,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// ParseStatus validates s against the status allow-list.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &InvalidStatusError{Status: s}
}

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "COD"
	PaymentCard PaymentMethod = "CARD"
	PaymentUPI  PaymentMethod = "UPI"
)

// ParsePaymentMethod validates s, defaulting to cash on delivery when empty.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch pm := PaymentMethod(s); pm {
	case "":
		return PaymentCOD, nil
	case PaymentCOD, PaymentCard, PaymentUPI:
		return pm, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// Item is a product line frozen at the price paid when the order was placed.
type Item struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal is Price times Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed customer order.
type Order struct {
	ID       string
	UserID   int64
	Items    []Item
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	// CouponCode is the upper-cased code redeemed, or empty.
	CouponCode string
	// ShippingAddress is nil when the user had no address to ship to.
	ShippingAddress *address.Snapshot
	PaymentMethod   PaymentMethod
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stats summarises all orders for the admin dashboard.
type Stats struct {
	Count    int
	Revenue  decimal.Decimal
	ByStatus map[Status]int
	Recent   []Order
}

// RecentOrders is how many orders Stats returns in Recent.
const RecentOrders = 10

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order together with its items.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders newest first.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// List returns every order newest first.
	List(ctx context.Context) ([]Order, error)
	// UpdateStatus sets the status and bumps UpdatedAt, returning the
	// updated order.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (*Order, error)
	Stats(ctx context.Context, recent int) (*Stats, error)
}
