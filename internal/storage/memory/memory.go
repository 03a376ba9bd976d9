// Package memory implements the storage interfaces in process memory.
//
// Every write runs against a private copy of the data which replaces the
// shared state only when the write succeeds, so a failed operation or
// transaction leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
)

type cartKey struct {
	userID    int64
	productID int64
}

type storedOrder struct {
	order.Order
	seq int64
}

type state struct {
	products  map[int64]product.Product
	carts     map[cartKey]cart.Line
	addresses map[int64]address.Address
	coupons   map[int64]coupon.Coupon
	orders    map[string]storedOrder

	lastProductID int64
	lastAddressID int64
	lastCouponID  int64
	lastOrderSeq  int64
}

func newState() *state {
	return &state{
		products:  make(map[int64]product.Product),
		carts:     make(map[cartKey]cart.Line),
		addresses: make(map[int64]address.Address),
		coupons:   make(map[int64]coupon.Coupon),
		orders:    make(map[string]storedOrder),
	}
}

// clone copies the maps. Values are never mutated in place, so sharing
// nested slices and pointers between copies is safe.
func (s *state) clone() *state {
	c := *s
	c.products = maps.Clone(s.products)
	c.carts = maps.Clone(s.carts)
	c.addresses = maps.Clone(s.addresses)
	c.coupons = maps.Clone(s.coupons)
	c.orders = maps.Clone(s.orders)
	return &c
}

type runner interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

// DB is an in-memory database shared by the repositories created from it.
type DB struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New creates an empty DB.
func New() *DB {
	return &DB{st: newState(), now: time.Now}
}

func (db *DB) read(fn func(st *state) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.st)
}

func (db *DB) write(fn func(st *state) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	next := db.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	db.st = next
	return nil
}

// txRunner operates on a transaction's private state; the DB lock is
// already held by InTx.
type txRunner struct {
	st *state
}

func (r txRunner) read(fn func(st *state) error) error { return fn(r.st) }
func (r txRunner) write(fn func(st *state) error) error { return fn(r.st) }

// store binds the repositories to one runner.
type store struct {
	r   runner
	now func() time.Time
}

func (s store) Carts() cart.Repository { return &CartRepository{r: s.r, now: s.now} }
func (s store) Products() product.Repository { return &ProductRepository{r: s.r} }
func (s store) Addresses() address.Repository { return &AddressRepository{r: s.r, now: s.now} }
func (s store) Coupons() coupon.Repository { return &CouponRepository{r: s.r, now: s.now} }
func (s store) Orders() order.Repository { return &OrderRepository{r: s.r} }

var _ order.Store = store{}

// Store returns repositories that each commit on their own.
func (db *DB) Store() order.Store {
	return store{r: db, now: db.now}
}

// InTx serializes fn against every other access to db. Writes made by fn
// become visible only if it returns nil.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	next := db.st.clone()
	if err := fn(ctx, store{r: txRunner{st: next}, now: db.now}); err != nil {
		return err
	}
	db.st = next
	return nil
}

var _ order.UnitOfWork = (*DB)(nil)
