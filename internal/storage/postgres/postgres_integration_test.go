//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	return m.Run()
}

func resetDB(t *testing.T) *DB {
	t.Helper()
	_, err := testPool.Exec(t.Context(),
		`TRUNCATE order_items, orders, cart_lines, addresses, coupons, products RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return NewDB(testPool)
}

func seedProduct(t *testing.T, d *DB, id int64, price string, stock int) {
	t.Helper()
	err := d.ProductRepository().Upsert(t.Context(), []product.Product{{
		ID: id, Name: fmt.Sprintf("Product %d", id), Price: decimal.RequireFromString(price),
		Stock: stock, Active: true,
	}})
	require.NoError(t, err)
}

func newOrderService(t *testing.T, d *DB) *order.Service {
	t.Helper()
	svc, err := order.NewService(d, d.Store().Orders(), nopPublisher{},
		metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return svc
}

type nopPublisher struct{}

func (nopPublisher) OrderPlaced(context.Context, *order.Order) error { return nil }

func (nopPublisher) OrderStatusChanged(context.Context, *order.Order, order.Status) error { return nil }

func TestPlaceOrder_Postgres(t *testing.T) {
	d := resetDB(t)
	ctx := t.Context()
	st := d.Store()
	seedProduct(t, d, 1, "10.00", 5)

	home := &address.Address{
		UserID: 1, Label: "Home", FullName: "Ada", Phone: "1", Line1: "1 Main St",
		City: "X", State: "Y", ZipCode: "Z", Country: "US",
	}
	require.NoError(t, st.Addresses().Create(ctx, home))
	assert.True(t, home.Default)

	limit := 1
	require.NoError(t, st.Coupons().Create(ctx, &coupon.Coupon{
		Code: "SAVE20", DiscountType: coupon.DiscountPercent, Value: decimal.NewFromInt(20),
		MinOrderAmount: decimal.NewFromInt(5), MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(3)),
		UsageLimit: &limit, Active: true,
	}))
	require.NoError(t, st.Carts().Upsert(ctx, cart.Line{UserID: 1, ProductID: 1, Quantity: 2}))

	svc := newOrderService(t, d)
	o, err := svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1, CouponCode: "save20"})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(17)))

	stored, err := svc.GetOrder(ctx, o.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", stored.CouponCode)
	require.NotNil(t, stored.ShippingAddress)
	assert.Equal(t, home.Snapshot(), *stored.ShippingAddress)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Price.Equal(decimal.NewFromInt(10)))

	p, err := st.Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	lines, err := st.Carts().Lines(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// The only use is gone; a second redemption must roll back entirely.
	require.NoError(t, st.Carts().Upsert(ctx, cart.Line{UserID: 1, ProductID: 1, Quantity: 1}))
	_, err = svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1, CouponCode: "SAVE20"})
	require.ErrorIs(t, err, order.ErrInvalidCoupon)

	p, err = st.Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestPlaceOrder_ConcurrentLastUnit_Postgres(t *testing.T) {
	d := resetDB(t)
	ctx := t.Context()
	seedProduct(t, d, 1, "5.00", 1)

	const buyers = 6
	for u := int64(1); u <= buyers; u++ {
		require.NoError(t, d.Store().Carts().Upsert(ctx, cart.Line{UserID: u, ProductID: 1, Quantity: 1}))
	}

	svc := newOrderService(t, d)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for u := int64(1); u <= buyers; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.PlaceOrder(ctx, order.PlaceRequest{UserID: u}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	p, err := d.Store().Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestAddressRepository_Postgres(t *testing.T) {
	d := resetDB(t)
	ctx := t.Context()
	repo := d.Store().Addresses()

	mk := func(line1 string, def bool) *address.Address {
		a := &address.Address{
			UserID: 1, Label: "Home", FullName: "Ada", Phone: "1", Line1: line1,
			City: "X", State: "Y", ZipCode: "Z", Country: "US", Default: def,
		}
		require.NoError(t, repo.Create(ctx, a))
		return a
	}
	first := mk("1 A St", false)
	second := mk("2 B St", true)

	def, err := repo.Default(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	require.NoError(t, repo.Delete(ctx, 1, second.ID))
	def, err = repo.Default(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, def.ID)

	require.ErrorIs(t, repo.SetDefault(ctx, 2, first.ID), address.ErrNotFound)
}

func TestCouponRepository_Postgres(t *testing.T) {
	d := resetDB(t)
	ctx := t.Context()
	repo := d.CouponRepository()

	c := &coupon.Coupon{Code: "FLAT5", DiscountType: coupon.DiscountFlat, Value: decimal.NewFromInt(5), Active: true}
	require.NoError(t, repo.Create(ctx, c))
	require.ErrorIs(t, repo.Create(ctx, &coupon.Coupon{
		Code: "FLAT5", DiscountType: coupon.DiscountFlat, Value: decimal.NewFromInt(1),
	}), coupon.ErrDuplicateCode)

	n, err := repo.Upsert(ctx, []coupon.Coupon{
		{Code: "FLAT5", DiscountType: coupon.DiscountFlat, Value: decimal.NewFromInt(6), Active: true},
		{Code: "PCT10", DiscountType: coupon.DiscountPercent, Value: decimal.NewFromInt(10), Active: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.FindByCode(ctx, "FLAT5")
	require.NoError(t, err)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(6)))

	require.NoError(t, repo.Delete(ctx, got.ID))
	_, err = repo.FindByCode(ctx, "FLAT5")
	require.ErrorIs(t, err, coupon.ErrNotFound)
}
