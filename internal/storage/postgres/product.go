package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-store/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, stock, is_active, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	lockProductSQL = getProductSQL + ` FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, stock = EXCLUDED.stock,
			is_active = EXCLUDED.is_active, updated_at = NOW()`

	syncProductSeqSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
		GREATEST((SELECT MAX(id) FROM products), 1))`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	q querier
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// Get returns a single product by ID.
func (r *ProductRepository) Get(ctx context.Context, id int64) (*product.Product, error) {
	return r.one(ctx, getProductSQL, id)
}

// Lock reads the product with FOR UPDATE.
func (r *ProductRepository) Lock(ctx context.Context, id int64) (*product.Product, error) {
	return r.one(ctx, lockProductSQL, id)
}

func (r *ProductRepository) one(ctx context.Context, sql string, id int64) (*product.Product, error) {
	rows, err := r.q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// DecrementStock subtracts qty only while enough stock remains.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	tag, err := r.q.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrStockConflict
	}
	return nil
}

// Upsert inserts or overwrites products by ID, then moves the ID sequence
// past the largest ID.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	return inTx(ctx, r.q, func(q querier) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Active)
		}
		batch.Queue(syncProductSeqSQL)
		if err := q.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting products: %w", err)
		}
		return nil
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
