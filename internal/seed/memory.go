package seed

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-store/internal/storage/memory"
)

// Memory fills an empty in-memory database with the demo dataset.
func Memory(ctx context.Context, db *memory.DB, now time.Time) error {
	for _, p := range Products() {
		db.AddProduct(p)
	}

	st := db.Store()
	for _, c := range Coupons(now) {
		if err := st.Coupons().Create(ctx, &c); err != nil {
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}
	}
	return Accounts(ctx, st)
}
