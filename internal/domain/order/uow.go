package order

import (
	"context"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/product"
)

// Store exposes the repositories bound to one transaction.
type Store interface {
	Carts() cart.Repository
	Products() product.Repository
	Addresses() address.Repository
	Coupons() coupon.Repository
	Orders() Repository
}

// UnitOfWork runs fn inside a single transaction. Every write made through
// the Store is committed when fn returns nil and discarded otherwise.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Publisher announces committed order changes to other systems.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
	OrderStatusChanged(ctx context.Context, o *Order, from Status) error
}
