package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-store/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_type, discount_value, min_order_amount, max_discount,
		usage_limit, times_used, is_active, expires_at, created_at`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY id`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	lockCouponByCodeSQL = getCouponByCodeSQL + ` FOR UPDATE`

	// The guard keeps times_used within usage_limit even without a row lock.
	incrementCouponUsageSQL = `UPDATE coupons SET times_used = times_used + 1
		WHERE id = $1 AND (usage_limit IS NULL OR times_used < usage_limit)`

	insertCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, min_order_amount, max_discount, usage_limit,
		 times_used, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	upsertCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, min_order_amount, max_discount, usage_limit, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			min_order_amount = EXCLUDED.min_order_amount, max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit, is_active = EXCLUDED.is_active,
			expires_at = EXCLUDED.expires_at`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	q querier
}

func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, nil
}

// FindByCode looks up a coupon by its normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.one(ctx, getCouponByCodeSQL, code)
}

// LockByCode looks up a coupon with FOR UPDATE.
func (r *CouponRepository) LockByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.one(ctx, lockCouponByCodeSQL, code)
}

func (r *CouponRepository) one(ctx context.Context, sql, code string) (*coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, sql, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage bumps times_used unless the usage limit is reached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.q.QueryRow(ctx, insertCouponSQL,
		c.Code, string(c.DiscountType), c.Value, c.MinOrderAmount, c.MaxDiscount,
		c.UsageLimit, c.TimesUsed, c.Active, c.ExpiresAt,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts coupons or overwrites the rule of existing codes, keeping
// their usage counters. It returns the number of rows written.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) (int, error) {
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL,
			c.Code, string(c.DiscountType), c.Value, c.MinOrderAmount, c.MaxDiscount,
			c.UsageLimit, c.Active, c.ExpiresAt,
		)
	}

	var written int
	err := inTx(ctx, r.q, func(q querier) error {
		br := q.SendBatch(ctx, batch)
		for range coupons {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("upserting coupons: %w", err)
			}
			written += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.Value, &c.MinOrderAmount, &c.MaxDiscount,
		&c.UsageLimit, &c.TimesUsed, &c.Active, &c.ExpiresAt, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
