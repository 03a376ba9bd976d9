package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/product"
)

const (
	cartLinesSQL = `SELECT user_id, product_id, quantity, added_at
		FROM cart_lines WHERE user_id = $1 ORDER BY product_id`

	cartEntriesSQL = `SELECT c.user_id, c.product_id, c.quantity, c.added_at,
			p.id, p.name, p.description, p.price, p.stock, p.is_active, p.created_at, p.updated_at
		FROM cart_lines c
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id`

	getCartLineSQL = `SELECT user_id, product_id, quantity, added_at
		FROM cart_lines WHERE user_id = $1 AND product_id = $2`

	upsertCartLineSQL = `INSERT INTO cart_lines (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_lines WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	q querier
}

func (r *CartRepository) Lines(ctx context.Context, userID int64) ([]cart.Line, error) {
	rows, err := r.q.Query(ctx, cartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, err)
	}

	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, err)
	}
	return lines, nil
}

func (r *CartRepository) Entries(ctx context.Context, userID int64) ([]cart.Entry, error) {
	rows, err := r.q.Query(ctx, cartEntriesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cart of user %d: %w", userID, err)
	}

	entries, err := pgx.CollectRows(rows, scanCartEntry)
	if err != nil {
		return nil, fmt.Errorf("reading cart of user %d: %w", userID, err)
	}
	return entries, nil
}

func (r *CartRepository) Get(ctx context.Context, userID, productID int64) (*cart.Line, error) {
	rows, err := r.q.Query(ctx, getCartLineSQL, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("getting cart line: %w", err)
	}

	line, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("getting cart line: %w", err)
	}
	return &line, nil
}

func (r *CartRepository) Upsert(ctx context.Context, line cart.Line) error {
	if _, err := r.q.Exec(ctx, upsertCartLineSQL, line.UserID, line.ProductID, line.Quantity); err != nil {
		return fmt.Errorf("upserting cart line: %w", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, userID, productID int64) error {
	tag, err := r.q.Exec(ctx, deleteCartLineSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.q.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of user %d: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.UserID, &l.ProductID, &l.Quantity, &l.AddedAt)
	return l, err
}

func scanCartEntry(row pgx.CollectableRow) (cart.Entry, error) {
	// Product columns are NULL when the product row is gone.
	var (
		e                    cart.Entry
		id                   *int64
		name, description    *string
		price                decimal.NullDecimal
		stock                *int
		active               *bool
		createdAt, updatedAt *time.Time
	)
	err := row.Scan(
		&e.Line.UserID, &e.Line.ProductID, &e.Line.Quantity, &e.Line.AddedAt,
		&id, &name, &description, &price, &stock, &active, &createdAt, &updatedAt,
	)
	if err != nil || id == nil {
		return e, err
	}
	e.Product = &product.Product{
		ID:          *id,
		Name:        *name,
		Description: *description,
		Price:       price.Decimal,
		Stock:       *stock,
		Active:      *active,
		CreatedAt:   *createdAt,
		UpdatedAt:   *updatedAt,
	}
	return e, nil
}
