package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/order"
)

const (
	orderColumns = `id::text, user_id, subtotal, discount_amount, total_price, coupon_code,
		shipping_address, payment_method, status, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders
		(id, user_id, subtotal, discount_amount, total_price, coupon_code,
		 shipping_address, payment_method, status, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, position, product_id, quantity, price)
		VALUES ($1::uuid, $2, $3, $4, $5)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1::uuid`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`

	listUserOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id`

	recentOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id LIMIT $1`

	orderItemsSQL = `SELECT order_id::text, product_id, quantity, price FROM order_items
		WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1::uuid RETURNING ` + orderColumns

	orderTotalsSQL = `SELECT COUNT(*), COALESCE(SUM(total_price), 0) FROM orders`

	orderStatusCountsSQL = `SELECT status, COUNT(*) FROM orders GROUP BY status`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// Create persists the order and its items in one batch. The shipping
// address snapshot is stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	var shipping []byte
	if o.ShippingAddress != nil {
		var err error
		shipping, err = json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshaling shipping address: %w", err)
		}
	}
	var couponCode *string
	if o.CouponCode != "" {
		couponCode = &o.CouponCode
	}

	batch := &pgx.Batch{}
	batch.Queue(insertOrderSQL,
		o.ID, o.UserID, o.Subtotal, o.Discount, o.Total, couponCode,
		shipping, string(o.PaymentMethod), string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	for i, item := range o.Items {
		batch.Queue(insertOrderItemSQL, o.ID, i, item.ProductID, item.Quantity, item.Price)
	}

	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listUserOrdersSQL, userID)
}

func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of every order with a single query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := r.q.Query(ctx, orderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    order.Item
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) (*order.Order, error) {
	rows, err := r.q.Query(ctx, updateOrderStatusSQL, id, string(status), at)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) Stats(ctx context.Context, recent int) (*order.Stats, error) {
	st := &order.Stats{ByStatus: make(map[order.Status]int)}
	if err := r.q.QueryRow(ctx, orderTotalsSQL).Scan(&st.Count, &st.Revenue); err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	rows, err := r.q.Query(ctx, orderStatusCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}
	var (
		status string
		count  int
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &count}, func() error {
		st.ByStatus[order.Status(status)] = count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}

	st.Recent, err = r.list(ctx, recentOrdersSQL, recent)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		couponCode    *string
		shipping      []byte
		paymentMethod string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Subtotal, &o.Discount, &o.Total, &couponCode,
		&shipping, &paymentMethod, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	if shipping != nil {
		var snap address.Snapshot
		if err := json.Unmarshal(shipping, &snap); err != nil {
			return o, fmt.Errorf("decoding shipping address: %w", err)
		}
		o.ShippingAddress = &snap
	}
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)
	return o, nil
}
