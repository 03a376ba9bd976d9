package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-store/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		opts        options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.batchSize, "batch-size", 1000, "coupons per upsert batch")
	flag.UintVar(&opts.expectedCodes, "expected-codes", 1_000_000, "expected number of codes, sizes the bloom filter")
	flag.Float64Var(&opts.falsePositiveRate, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: coupon-import [flags] file.csv.gz [file.csv.gz ...]\n\n" +
			"Each row: code,type,value,min_order,max_discount,usage_limit,expires_at\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, opts); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, opts options) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := importFiles(ctx, files, postgres.NewDB(pool).CouponRepository(), opts)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("rows", stats.rows),
		slog.Int("invalid", stats.invalid),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("written", stats.written),
	)
	return nil
}
