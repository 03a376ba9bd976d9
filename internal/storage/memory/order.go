package memory

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/order"
)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	r runner
}

var _ order.Repository = (*OrderRepository)(nil)

func copyOrder(o order.Order) *order.Order {
	o.Items = slices.Clone(o.Items)
	return &o
}

// newestFirst returns the orders matching keep, newest first.
func newestFirst(st *state, keep func(o *order.Order) bool) []order.Order {
	stored := make([]storedOrder, 0, len(st.orders))
	for _, so := range st.orders {
		if keep == nil || keep(&so.Order) {
			stored = append(stored, so)
		}
	}
	slices.SortFunc(stored, func(a, b storedOrder) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})

	out := make([]order.Order, len(stored))
	for i, so := range stored {
		out[i] = *copyOrder(so.Order)
	}
	return out
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	return r.r.write(func(st *state) error {
		st.lastOrderSeq++
		st.orders[o.ID] = storedOrder{Order: *copyOrder(*o), seq: st.lastOrderSeq}
		return nil
	})
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	var out *order.Order
	err := r.r.read(func(st *state) error {
		so, ok := st.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		out = copyOrder(so.Order)
		return nil
	})
	return out, err
}

func (r *OrderRepository) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	var out []order.Order
	err := r.r.read(func(st *state) error {
		out = newestFirst(st, func(o *order.Order) bool { return o.UserID == userID })
		return nil
	})
	return out, err
}

func (r *OrderRepository) List(_ context.Context) ([]order.Order, error) {
	var out []order.Order
	err := r.r.read(func(st *state) error {
		out = newestFirst(st, nil)
		return nil
	})
	return out, err
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status order.Status, at time.Time) (*order.Order, error) {
	var out *order.Order
	err := r.r.write(func(st *state) error {
		so, ok := st.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		so.Status = status
		so.UpdatedAt = at
		st.orders[id] = so
		out = copyOrder(so.Order)
		return nil
	})
	return out, err
}

func (r *OrderRepository) Stats(_ context.Context, recent int) (*order.Stats, error) {
	out := &order.Stats{Revenue: decimal.Zero, ByStatus: make(map[order.Status]int)}
	err := r.r.read(func(st *state) error {
		all := newestFirst(st, nil)
		for _, o := range all {
			out.Count++
			out.Revenue = out.Revenue.Add(o.Total)
			out.ByStatus[o.Status]++
		}
		out.Recent = all[:min(recent, len(all))]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
