// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-store/db"
	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
)

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// querier is the subset of pgxpool.Pool and pgx.Tx used by repositories.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTx runs fn in a transaction on q. Inside an outer transaction it opens
// a savepoint instead.
func inTx(ctx context.Context, q querier, fn func(q querier) error) error {
	b, ok := q.(beginner)
	if !ok {
		return fn(q)
	}
	return pgx.BeginFunc(ctx, b, func(tx pgx.Tx) error { return fn(tx) })
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Store binds every repository to one querier.
type Store struct {
	q querier
}

func (s Store) Carts() cart.Repository { return &CartRepository{q: s.q} }
func (s Store) Products() product.Repository { return &ProductRepository{q: s.q} }
func (s Store) Addresses() address.Repository { return &AddressRepository{q: s.q} }
func (s Store) Coupons() coupon.Repository { return &CouponRepository{q: s.q} }
func (s Store) Orders() order.Repository { return &OrderRepository{q: s.q} }

var _ order.Store = Store{}

// DB provides pool-backed repositories and transactional units of work.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB wraps pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

var _ order.UnitOfWork = (*DB)(nil)

// Store returns repositories that run each statement on the pool.
func (d *DB) Store() Store {
	return Store{q: d.pool}
}

// InTx runs fn in a READ COMMITTED transaction. Rows read through Lock and
// LockByCode stay locked until the transaction commits or rolls back.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Store) error) error {
	return pgx.BeginTxFunc(ctx, d.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, Store{q: tx})
	})
}

// ProductRepository returns the pool-backed catalog repository, which adds
// bulk upserts for seeding.
func (d *DB) ProductRepository() *ProductRepository {
	return &ProductRepository{q: d.pool}
}

// CouponRepository returns the pool-backed coupon repository, which adds
// bulk upserts for imports.
func (d *DB) CouponRepository() *CouponRepository {
	return &CouponRepository{q: d.pool}
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}
