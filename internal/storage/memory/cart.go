package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/kart-store/internal/domain/cart"
)

// CartRepository implements cart.Repository.
type CartRepository struct {
	r   runner
	now func() time.Time
}

var _ cart.Repository = (*CartRepository)(nil)

func userLines(st *state, userID int64) []cart.Line {
	var out []cart.Line
	for k, l := range st.carts {
		if k.userID == userID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b cart.Line) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out
}

func (r *CartRepository) Lines(_ context.Context, userID int64) ([]cart.Line, error) {
	var out []cart.Line
	err := r.r.read(func(st *state) error {
		out = userLines(st, userID)
		return nil
	})
	return out, err
}

func (r *CartRepository) Entries(_ context.Context, userID int64) ([]cart.Entry, error) {
	var out []cart.Entry
	err := r.r.read(func(st *state) error {
		for _, l := range userLines(st, userID) {
			e := cart.Entry{Line: l}
			if p, ok := st.products[l.ProductID]; ok {
				e.Product = &p
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (r *CartRepository) Get(_ context.Context, userID, productID int64) (*cart.Line, error) {
	var out *cart.Line
	err := r.r.read(func(st *state) error {
		l, ok := st.carts[cartKey{userID: userID, productID: productID}]
		if !ok {
			return cart.ErrLineNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (r *CartRepository) Upsert(_ context.Context, line cart.Line) error {
	return r.r.write(func(st *state) error {
		k := cartKey{userID: line.UserID, productID: line.ProductID}
		if prev, ok := st.carts[k]; ok {
			line.AddedAt = prev.AddedAt
		} else if line.AddedAt.IsZero() {
			line.AddedAt = r.now()
		}
		st.carts[k] = line
		return nil
	})
}

func (r *CartRepository) Delete(_ context.Context, userID, productID int64) error {
	return r.r.write(func(st *state) error {
		k := cartKey{userID: userID, productID: productID}
		if _, ok := st.carts[k]; !ok {
			return cart.ErrLineNotFound
		}
		delete(st.carts, k)
		return nil
	})
}

func (r *CartRepository) Clear(_ context.Context, userID int64) error {
	return r.r.write(func(st *state) error {
		for k := range st.carts {
			if k.userID == userID {
				delete(st.carts, k)
			}
		}
		return nil
	})
}
