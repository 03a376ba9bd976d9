package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
	"github.com/xenking/kart-store/internal/storage/memory"
)

type recordingPublisher struct {
	mu      sync.Mutex
	placed  []string
	changed []order.Status
	err     error
}

func (p *recordingPublisher) OrderPlaced(_ context.Context, o *order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, o.ID)
	return p.err
}

func (p *recordingPublisher) OrderStatusChanged(_ context.Context, o *order.Order, _ order.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, o.Status)
	return p.err
}

type fixture struct {
	db  *memory.DB
	st  order.Store
	pub *recordingPublisher
	svc *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	pub := &recordingPublisher{}
	svc, err := order.NewService(db, db.Store().Orders(), pub,
		metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return &fixture{db: db, st: db.Store(), pub: pub, svc: svc}
}

func (f *fixture) product(price string, stock int) int64 {
	return f.db.AddProduct(product.Product{
		Name:   "Widget",
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	})
}

func (f *fixture) addToCart(t *testing.T, userID, productID int64, qty int) {
	t.Helper()
	require.NoError(t, f.st.Carts().Upsert(t.Context(), cart.Line{
		UserID: userID, ProductID: productID, Quantity: qty,
	}))
}

func (f *fixture) coupon(t *testing.T, c coupon.Coupon) {
	t.Helper()
	require.NoError(t, f.st.Coupons().Create(t.Context(), &c))
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.st.Products().Get(t.Context(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) cartSize(t *testing.T, userID int64) int {
	t.Helper()
	lines, err := f.st.Carts().Lines(t.Context(), userID)
	require.NoError(t, err)
	return len(lines)
}

func intPtr(v int) *int { return &v }

func save20() coupon.Coupon {
	return coupon.Coupon{
		Code:           "SAVE20",
		DiscountType:   coupon.DiscountPercent,
		Value:          decimal.NewFromInt(20),
		MinOrderAmount: decimal.NewFromInt(5),
		MaxDiscount:    decimal.NewNullDecimal(decimal.RequireFromString("3.00")),
		Active:         true,
	}
}

func TestPlaceOrder_CappedPercentCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pid := f.product("10.00", 10)
	f.addToCart(t, 1, pid, 2)
	f.coupon(t, save20())

	o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1, CouponCode: "save20"})
	require.NoError(t, err)

	assert.Equal(t, "20", o.Subtotal.String())
	assert.Equal(t, "3", o.Discount.String())
	assert.Equal(t, "17", o.Total.String())
	assert.Equal(t, "SAVE20", o.CouponCode)
	assert.Equal(t, order.StatusPlaced, o.Status)
	assert.Equal(t, order.PaymentCOD, o.PaymentMethod)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, o.Items[0].Price.Equal(decimal.RequireFromString("10.00")))

	assert.Equal(t, 8, f.stock(t, pid))
	assert.Zero(t, f.cartSize(t, 1))

	c, err := f.st.Coupons().FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TimesUsed)

	stored, err := f.svc.GetOrder(ctx, o.ID, 1, false)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(o.Total))
	assert.Equal(t, []string{o.ID}, f.pub.placed)
}

func TestPlaceOrder_StockDecrementsPerLine(t *testing.T) {
	f := newFixture(t)
	a := f.product("2.50", 5)
	b := f.product("4.00", 3)
	f.addToCart(t, 1, a, 4)
	f.addToCart(t, 1, b, 3)

	o, err := f.svc.PlaceOrder(t.Context(), order.PlaceRequest{UserID: 1, PaymentMethod: "CARD"})
	require.NoError(t, err)

	assert.Equal(t, "22", o.Total.String())
	assert.Equal(t, order.PaymentCard, o.PaymentMethod)
	assert.Equal(t, 1, f.stock(t, a))
	assert.Equal(t, 0, f.stock(t, b))
	assert.Zero(t, f.cartSize(t, 1))
}

func TestPlaceOrder_Failures(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture) (order.PlaceRequest, []int64)
		wantErr error
	}{
		{
			name: "empty cart",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				f.product("1.00", 1)
				return order.PlaceRequest{UserID: 1}, nil
			},
			wantErr: order.ErrEmptyCart,
		},
		{
			name: "insufficient stock",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("3.00", 2)
				f.addToCart(t, 1, pid, 5)
				return order.PlaceRequest{UserID: 1}, []int64{pid}
			},
			wantErr: order.ErrInsufficientStock,
		},
		{
			name: "insufficient stock on later line",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				ok := f.product("3.00", 10)
				short := f.product("3.00", 1)
				f.addToCart(t, 1, ok, 2)
				f.addToCart(t, 1, short, 2)
				return order.PlaceRequest{UserID: 1}, []int64{ok, short}
			},
			wantErr: order.ErrInsufficientStock,
		},
		{
			name: "product removed",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				ok := f.product("3.00", 10)
				gone := f.product("3.00", 10)
				f.addToCart(t, 1, ok, 1)
				f.addToCart(t, 1, gone, 1)
				f.db.DeleteProduct(gone)
				return order.PlaceRequest{UserID: 1}, []int64{ok}
			},
			wantErr: order.ErrProductNotFound,
		},
		{
			name: "product inactive",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.db.AddProduct(product.Product{
					Name: "Old", Price: decimal.NewFromInt(1), Stock: 4,
				})
				f.addToCart(t, 1, pid, 1)
				return order.PlaceRequest{UserID: 1}, []int64{pid}
			},
			wantErr: order.ErrProductUnavailable,
		},
		{
			name: "product sold out",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("1.00", 0)
				f.addToCart(t, 1, pid, 1)
				return order.PlaceRequest{UserID: 1}, []int64{pid}
			},
			wantErr: order.ErrProductUnavailable,
		},
		{
			name: "zero price",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("0", 4)
				f.addToCart(t, 1, pid, 1)
				return order.PlaceRequest{UserID: 1}, []int64{pid}
			},
			wantErr: order.ErrInvalidPrice,
		},
		{
			name: "unknown coupon",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("10.00", 4)
				f.addToCart(t, 1, pid, 1)
				return order.PlaceRequest{UserID: 1, CouponCode: "NOPE"}, []int64{pid}
			},
			wantErr: order.ErrInvalidCoupon,
		},
		{
			name: "coupon usage exhausted",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("10.00", 4)
				f.addToCart(t, 1, pid, 1)
				c := save20()
				c.UsageLimit = intPtr(1)
				c.TimesUsed = 1
				f.coupon(t, c)
				return order.PlaceRequest{UserID: 1, CouponCode: "SAVE20"}, []int64{pid}
			},
			wantErr: order.ErrInvalidCoupon,
		},
		{
			name: "coupon expired",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("10.00", 4)
				f.addToCart(t, 1, pid, 1)
				c := save20()
				c.ExpiresAt = &past
				f.coupon(t, c)
				return order.PlaceRequest{UserID: 1, CouponCode: "SAVE20"}, []int64{pid}
			},
			wantErr: coupon.ErrExpired,
		},
		{
			name: "coupon inactive",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("10.00", 4)
				f.addToCart(t, 1, pid, 1)
				c := save20()
				c.Active = false
				f.coupon(t, c)
				return order.PlaceRequest{UserID: 1, CouponCode: "SAVE20"}, []int64{pid}
			},
			wantErr: coupon.ErrInactive,
		},
		{
			name: "address of another user",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("10.00", 4)
				f.addToCart(t, 1, pid, 1)
				a := &address.Address{UserID: 2, FullName: "Other", Line1: "1 Road"}
				require.NoError(t, f.st.Addresses().Create(t.Context(), a))
				return order.PlaceRequest{UserID: 1, AddressID: &a.ID}, []int64{pid}
			},
			wantErr: order.ErrAddressNotFound,
		},
		{
			name: "unknown payment method",
			setup: func(t *testing.T, f *fixture) (order.PlaceRequest, []int64) {
				pid := f.product("10.00", 4)
				f.addToCart(t, 1, pid, 1)
				return order.PlaceRequest{UserID: 1, PaymentMethod: "BARTER"}, []int64{pid}
			},
			wantErr: order.ErrInvalidPaymentMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req, products := tt.setup(t, f)

			before := make(map[int64]int, len(products))
			for _, id := range products {
				before[id] = f.stock(t, id)
			}
			cartBefore := f.cartSize(t, req.UserID)

			o, err := f.svc.PlaceOrder(t.Context(), req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o)

			for id, stock := range before {
				assert.Equal(t, stock, f.stock(t, id), "stock of product %d", id)
			}
			assert.Equal(t, cartBefore, f.cartSize(t, req.UserID))

			orders, err := f.svc.ListOrders(t.Context(), 0, true)
			require.NoError(t, err)
			assert.Empty(t, orders)
			assert.Empty(t, f.pub.placed)
		})
	}
}

func TestPlaceOrder_InsufficientStockDetails(t *testing.T) {
	f := newFixture(t)
	pid := f.product("3.00", 2)
	f.addToCart(t, 1, pid, 5)

	_, err := f.svc.PlaceOrder(t.Context(), order.PlaceRequest{UserID: 1})

	var stockErr *product.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, pid, stockErr.ID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
}

func TestPlaceOrder_CouponBelowMinimumStillRedeems(t *testing.T) {
	f := newFixture(t)
	pid := f.product("2.00", 5)
	f.addToCart(t, 1, pid, 1)
	f.coupon(t, save20())

	o, err := f.svc.PlaceOrder(t.Context(), order.PlaceRequest{UserID: 1, CouponCode: "SAVE20"})
	require.NoError(t, err)
	assert.True(t, o.Discount.IsZero())
	assert.Equal(t, "2", o.Total.String())
	assert.Equal(t, "SAVE20", o.CouponCode)
}

func TestPlaceOrder_LastCouponUse(t *testing.T) {
	f := newFixture(t)
	pid := f.product("10.00", 5)
	c := save20()
	c.UsageLimit = intPtr(1)
	f.coupon(t, c)

	f.addToCart(t, 1, pid, 1)
	_, err := f.svc.PlaceOrder(t.Context(), order.PlaceRequest{UserID: 1, CouponCode: "SAVE20"})
	require.NoError(t, err)

	f.addToCart(t, 2, pid, 1)
	_, err = f.svc.PlaceOrder(t.Context(), order.PlaceRequest{UserID: 2, CouponCode: "SAVE20"})
	require.ErrorIs(t, err, coupon.ErrUsageLimitReached)
	assert.Equal(t, 4, f.stock(t, pid))
}

func TestPlaceOrder_ShippingAddress(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pid := f.product("1.00", 10)

	home := &address.Address{UserID: 1, Label: "Home", FullName: "Ada", Line1: "1 Main St", City: "Springfield"}
	require.NoError(t, f.st.Addresses().Create(ctx, home))
	work := &address.Address{UserID: 1, Label: "Work", FullName: "Ada", Line1: "9 Office Rd", City: "Shelbyville"}
	require.NoError(t, f.st.Addresses().Create(ctx, work))

	t.Run("default used when none given", func(t *testing.T) {
		f.addToCart(t, 1, pid, 1)
		o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1})
		require.NoError(t, err)
		require.NotNil(t, o.ShippingAddress)
		assert.Equal(t, home.Snapshot(), *o.ShippingAddress)
	})

	t.Run("explicit address", func(t *testing.T) {
		f.addToCart(t, 1, pid, 1)
		o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1, AddressID: &work.ID})
		require.NoError(t, err)
		require.NotNil(t, o.ShippingAddress)
		assert.Equal(t, "9 Office Rd", o.ShippingAddress.Line1)
	})

	t.Run("snapshot survives address deletion", func(t *testing.T) {
		f.addToCart(t, 1, pid, 1)
		o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1})
		require.NoError(t, err)

		require.NoError(t, f.st.Addresses().Delete(ctx, 1, home.ID))

		stored, err := f.svc.GetOrder(ctx, o.ID, 1, false)
		require.NoError(t, err)
		require.NotNil(t, stored.ShippingAddress)
		assert.Equal(t, "1 Main St", stored.ShippingAddress.Line1)
	})

	t.Run("no address on file", func(t *testing.T) {
		f.addToCart(t, 3, pid, 1)
		o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 3})
		require.NoError(t, err)
		assert.Nil(t, o.ShippingAddress)
	})
}

func TestPlaceOrder_PricesFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pid := f.product("10.00", 10)
	f.addToCart(t, 1, pid, 3)

	o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1})
	require.NoError(t, err)

	require.NoError(t, f.db.SetProductPrice(pid, decimal.RequireFromString("99.99")))

	stored, err := f.svc.GetOrder(ctx, o.ID, 1, false)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "30", stored.Total.String())
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	pid := f.product("5.00", 1)

	const buyers = 8
	for u := int64(1); u <= buyers; u++ {
		f.addToCart(t, u, pid, 1)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for u := int64(1); u <= buyers; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), order.PlaceRequest{UserID: u})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, order.ErrProductUnavailable)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 0, f.stock(t, pid))
}

func TestPlaceOrder_PublishFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	pid := f.product("1.00", 1)
	f.addToCart(t, 1, pid, 1)

	o, err := f.svc.PlaceOrder(t.Context(), order.PlaceRequest{UserID: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pid := f.product("1.00", 5)
	f.addToCart(t, 1, pid, 1)
	o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		userID  int64
		isAdmin bool
		wantErr error
	}{
		{name: "owner", id: o.ID, userID: 1},
		{name: "admin", id: o.ID, userID: 99, isAdmin: true},
		{name: "other user", id: o.ID, userID: 2, wantErr: order.ErrAccessDenied},
		{name: "unknown id", id: "3b241101-e2bb-4255-8caf-4136c566a962", userID: 1, wantErr: order.ErrNotFound},
		{name: "malformed id", id: "42", userID: 1, wantErr: order.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.GetOrder(ctx, tt.id, tt.userID, tt.isAdmin)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
		})
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pid := f.product("1.00", 5)
	f.addToCart(t, 1, pid, 1)
	o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: 1})
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "LOST")
	require.ErrorIs(t, err, order.ErrInvalidStatus)

	_, err = f.svc.UpdateOrderStatus(ctx, "3b241101-e2bb-4255-8caf-4136c566a962", "SHIPPED")
	require.ErrorIs(t, err, order.ErrNotFound)

	updated, err := f.svc.UpdateOrderStatus(ctx, o.ID, "SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, updated.Status)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, []order.Status{order.StatusShipped}, f.pub.changed)

	stored, err := f.svc.GetOrder(ctx, o.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, stored.Status)
}

func TestListOrdersAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pid := f.product("2.00", 50)

	var ids []string
	for _, u := range []int64{1, 1, 2} {
		f.addToCart(t, u, pid, 1)
		o, err := f.svc.PlaceOrder(ctx, order.PlaceRequest{UserID: u})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := f.svc.UpdateOrderStatus(ctx, ids[0], "DELIVERED")
	require.NoError(t, err)

	mine, err := f.svc.ListOrders(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, ids[1], mine[0].ID)
	assert.Equal(t, ids[0], mine[1].ID)

	all, err := f.svc.ListOrders(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, "6", st.Revenue.String())
	assert.Equal(t, 2, st.ByStatus[order.StatusPlaced])
	assert.Equal(t, 1, st.ByStatus[order.StatusDelivered])
	assert.Len(t, st.Recent, 3)
}

func TestParseStatus(t *testing.T) {
	for _, s := range order.Statuses {
		got, err := order.ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	for _, s := range []string{"", "placed", "RETURNED"} {
		_, err := order.ParseStatus(s)
		require.ErrorIs(t, err, order.ErrInvalidStatus)
	}
}
