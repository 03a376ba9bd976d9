package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/kart-store/internal/domain/coupon"
)

// CouponRepository implements coupon.Repository.
type CouponRepository struct {
	r   runner
	now func() time.Time
}

var _ coupon.Repository = (*CouponRepository)(nil)

func findCode(st *state, code string) (coupon.Coupon, bool) {
	for _, c := range st.coupons {
		if c.Code == code {
			return c, true
		}
	}
	return coupon.Coupon{}, false
}

func (r *CouponRepository) List(_ context.Context) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	err := r.r.read(func(st *state) error {
		out = make([]coupon.Coupon, 0, len(st.coupons))
		for _, c := range st.coupons {
			out = append(out, c)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b coupon.Coupon) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	var out *coupon.Coupon
	err := r.r.read(func(st *state) error {
		c, ok := findCode(st, code)
		if !ok {
			return coupon.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

// LockByCode is FindByCode: transactions already hold the DB lock.
func (r *CouponRepository) LockByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.FindByCode(ctx, code)
}

func (r *CouponRepository) IncrementUsage(_ context.Context, id int64) error {
	return r.r.write(func(st *state) error {
		c, ok := st.coupons[id]
		if !ok {
			return coupon.ErrNotFound
		}
		if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
			return coupon.ErrUsageLimitReached
		}
		c.TimesUsed++
		st.coupons[id] = c
		return nil
	})
}

func (r *CouponRepository) Create(_ context.Context, c *coupon.Coupon) error {
	return r.r.write(func(st *state) error {
		if _, ok := findCode(st, c.Code); ok {
			return coupon.ErrDuplicateCode
		}
		st.lastCouponID++
		c.ID = st.lastCouponID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = r.now()
		}
		st.coupons[c.ID] = *c
		return nil
	})
}

func (r *CouponRepository) Delete(_ context.Context, id int64) error {
	return r.r.write(func(st *state) error {
		if _, ok := st.coupons[id]; !ok {
			return coupon.ErrNotFound
		}
		delete(st.coupons, id)
		return nil
	})
}
