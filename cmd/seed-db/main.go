package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-store/internal/domain/auth"
	"github.com/xenking/kart-store/internal/seed"
	"github.com/xenking/kart-store/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		secret      string
		issuer      string
		ttl         time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&secret, "auth-secret", "", "HMAC secret for dev bearer tokens (or STORE_AUTH_SECRET env)")
	flag.StringVar(&issuer, "auth-issuer", "kart-store", "token issuer, must match the API server")
	flag.DurationVar(&ttl, "token-ttl", 30*24*time.Hour, "lifetime of the printed dev tokens")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if secret == "" {
		secret = os.Getenv("STORE_AUTH_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")

	if secret == "" {
		slog.Warn("no auth secret given, skipping dev tokens")
		return
	}
	if err := printTokens(auth.NewTokenManager([]byte(secret), issuer, ttl)); err != nil {
		slog.Error("issue tokens", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	db := postgres.NewDB(pool)

	products := seed.Products()
	if err := db.ProductRepository().Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	slog.Info("upserted products", slog.Int("count", len(products)))

	n, err := db.CouponRepository().Upsert(ctx, seed.Coupons(time.Now()))
	if err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	slog.Info("upserted coupons", slog.Int("count", n))

	if err := seed.Accounts(ctx, db.Store()); err != nil {
		return errors.Wrap(err, "seed accounts")
	}
	slog.Info("seeded addresses and cart", slog.Int64("user_id", seed.UserID))

	return nil
}

func printTokens(tokens *auth.TokenManager) error {
	for _, id := range []auth.Identity{
		{UserID: seed.UserID, Role: auth.RoleUser},
		{UserID: seed.JaneID, Role: auth.RoleUser},
		{UserID: seed.AdminID, Role: auth.RoleAdmin},
	} {
		token, err := tokens.Issue(id)
		if err != nil {
			return errors.Wrapf(err, "issue token for user %d", id.UserID)
		}
		fmt.Printf("%-5s user %d: Bearer %s\n", id.Role, id.UserID, token)
	}
	return nil
}
