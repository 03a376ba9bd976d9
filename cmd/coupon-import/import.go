package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-store/internal/domain/coupon"
)

const (
	numColumns    = 7
	progressEvery = 100_000
)

type options struct {
	batchSize         int
	expectedCodes     uint
	falsePositiveRate float64
}

// upserter stores a batch of coupons, returning how many rows were written.
type upserter interface {
	Upsert(ctx context.Context, coupons []coupon.Coupon) (int, error)
}

type importStats struct {
	rows       int
	invalid    int
	duplicates int
	written    int
}

// importFiles loads coupons from gzip CSV files. The first occurrence of a
// code wins; later rows with the same code are dropped.
//
// Pass 1 feeds every code through a bloom filter. Codes the filter had
// already seen are possible duplicates and are the only ones tracked
// exactly. Pass 2 parses rows and hands batches to a writer goroutine.
func importFiles(ctx context.Context, files []string, repo upserter, opts options) (importStats, error) {
	if opts.batchSize <= 0 {
		opts.batchSize = 1000
	}

	slog.Info("pass 1: scanning codes", slog.Int("files", len(files)))

	d := newDedup(opts.expectedCodes, opts.falsePositiveRate)
	for _, path := range files {
		if err := eachRow(ctx, path, func(_ int, rec []string) error {
			d.observe(coupon.NormalizeCode(rec[0]))
			return nil
		}); err != nil {
			return importStats{}, errors.Wrap(err, "scan codes")
		}
	}

	slog.Info("pass 1 complete", slog.Int("possible_duplicates", len(d.candidates)))
	slog.Info("pass 2: importing coupons")

	var stats importStats
	batches := make(chan []coupon.Coupon, 4)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)

		batch := make([]coupon.Coupon, 0, opts.batchSize)
		for _, path := range files {
			err := eachRow(ctx, path, func(line int, rec []string) error {
				stats.rows++
				if stats.rows%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("rows", stats.rows))
				}

				c, err := parseRow(rec)
				if err != nil {
					stats.invalid++
					slog.Warn("skipping row",
						slog.String("file", path),
						slog.Int("line", line),
						slog.String("error", err.Error()),
					)
					return nil
				}
				if !d.first(c.Code) {
					stats.duplicates++
					return nil
				}

				batch = append(batch, c)
				if len(batch) < opts.batchSize {
					return nil
				}
				select {
				case batches <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				batch = make([]coupon.Coupon, 0, opts.batchSize)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for batch := range batches {
			n, err := repo.Upsert(ctx, batch)
			if err != nil {
				return errors.Wrapf(err, "upsert batch of %d", len(batch))
			}
			stats.written += n
			slog.Info("write progress", slog.Int("written", stats.written))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// dedup finds repeated codes using a bloom filter plus an exact set that
// only holds codes the filter reported as already seen.
type dedup struct {
	filter     *bloom.BloomFilter
	candidates map[string]bool
}

func newDedup(n uint, fpr float64) *dedup {
	return &dedup{
		filter:     bloom.NewWithEstimates(n, fpr),
		candidates: make(map[string]bool),
	}
}

// observe records code during the scan pass.
func (d *dedup) observe(code string) {
	if d.filter.TestOrAddString(code) {
		d.candidates[code] = false
	}
}

// first reports whether code has not been accepted before, and marks it
// accepted.
func (d *dedup) first(code string) bool {
	accepted, tracked := d.candidates[code]
	if !tracked {
		return true
	}
	if accepted {
		return false
	}
	d.candidates[code] = true
	return true
}

// eachRow streams the CSV rows of a gzip file. A header row starting with
// "code" is skipped.
func eachRow(ctx context.Context, path string, fn func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = numColumns
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

// parseRow converts code,type,value,min_order,max_discount,usage_limit,
// expires_at into a validated, active coupon. Empty optional columns mean
// unset.
func parseRow(rec []string) (coupon.Coupon, error) {
	field := func(i int) string { return strings.TrimSpace(rec[i]) }

	c := coupon.Coupon{
		Code:         field(0),
		DiscountType: coupon.DiscountType(strings.ToLower(field(1))),
		Active:       true,
	}

	var err error
	if c.Value, err = decimal.NewFromString(field(2)); err != nil {
		return c, errors.Wrap(err, "value")
	}
	if v := field(3); v != "" {
		if c.MinOrderAmount, err = decimal.NewFromString(v); err != nil {
			return c, errors.Wrap(err, "min_order")
		}
	}
	if v := field(4); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return c, errors.Wrap(err, "max_discount")
		}
		c.MaxDiscount = decimal.NewNullDecimal(d)
	}
	if v := field(5); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrap(err, "usage_limit")
		}
		c.UsageLimit = &n
	}
	if v := field(6); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return c, errors.Wrap(err, "expires_at")
		}
		c.ExpiresAt = &t
	}

	if err := c.Normalize(); err != nil {
		return c, err
	}
	return c, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates. A date expires at
// the end of that day in UTC.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(24*time.Hour - time.Second), nil
}
