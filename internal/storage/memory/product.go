package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/product"
)

// ProductRepository implements product.Repository.
type ProductRepository struct {
	r runner
}

var _ product.Repository = (*ProductRepository)(nil)

// List returns active and inactive products ordered by id.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	var out []product.Product
	err := r.r.read(func(st *state) error {
		out = make([]product.Product, 0, len(st.products))
		for _, p := range st.products {
			out = append(out, p)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

func (r *ProductRepository) Get(_ context.Context, id int64) (*product.Product, error) {
	var out *product.Product
	err := r.r.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

// Lock is Get: transactions already hold the DB lock.
func (r *ProductRepository) Lock(ctx context.Context, id int64) (*product.Product, error) {
	return r.Get(ctx, id)
}

func (r *ProductRepository) DecrementStock(_ context.Context, id int64, qty int) error {
	return r.r.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		if p.Stock < qty {
			return product.ErrStockConflict
		}
		p.Stock -= qty
		st.products[id] = p
		return nil
	})
}

// AddProduct inserts p with a fresh id and returns it.
func (db *DB) AddProduct(p product.Product) int64 {
	_ = db.write(func(st *state) error {
		st.lastProductID++
		p.ID = st.lastProductID
		now := db.now()
		p.CreatedAt, p.UpdatedAt = now, now
		st.products[p.ID] = p
		return nil
	})
	return p.ID
}

// SetProductPrice changes a product's catalog price.
func (db *DB) SetProductPrice(id int64, price decimal.Decimal) error {
	return db.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		p.Price = price
		p.UpdatedAt = db.now()
		st.products[id] = p
		return nil
	})
}

// DeleteProduct removes a product from the catalog. Cart lines referencing
// it are left in place.
func (db *DB) DeleteProduct(id int64) {
	_ = db.write(func(st *state) error {
		delete(st.products, id)
		return nil
	})
}
