package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/product"
)

const instrumentationName = "github.com/xenking/kart-store/internal/domain/order"

// PlaceRequest holds the input for placing an order from the user's cart.
type PlaceRequest struct {
	UserID int64
	// AddressID selects a saved address. When nil the user's default
	// address is used, if there is one.
	AddressID     *int64
	CouponCode    string
	PaymentMethod string
}

// Service encapsulates order placement and order administration.
type Service struct {
	uow       UnitOfWork
	orders    Repository
	publisher Publisher
	now       func() time.Time
	newID     func() string

	tracer trace.Tracer
	placed metric.Int64Counter
	failed metric.Int64Counter
}

// NewService creates an order Service. Placement runs through uow; reads
// and status updates go straight to orders.
func NewService(
	uow UnitOfWork,
	orders Repository,
	publisher Publisher,
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
) (*Service, error) {
	meter := meterProvider.Meter(instrumentationName)
	placed, err := meter.Int64Counter("store.orders.placed",
		metric.WithDescription("Orders placed successfully"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create placed counter")
	}
	failed, err := meter.Int64Counter("store.orders.failed",
		metric.WithDescription("Order placements rejected or aborted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create failed counter")
	}

	return &Service{
		uow:       uow,
		orders:    orders,
		publisher: publisher,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		tracer:    tracerProvider.Tracer(instrumentationName),
		placed:    placed,
		failed:    failed,
	}, nil
}

// PlaceOrder turns the user's cart into an order. Stock decrements, coupon
// redemption, order insertion and cart clearing commit together or not at
// all.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place",
		trace.WithAttributes(attribute.Int64("user.id", req.UserID)),
	)
	defer span.End()

	o, err := s.place(ctx, req)
	if err != nil {
		reason := failureReason(err)
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		span.SetStatus(codes.Error, reason)
		if reason == "internal" {
			span.RecordError(err)
		}
		return nil, err
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", o.ID))

	lg := zctx.From(ctx)
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.Stringer("total", o.Total),
		zap.Int("items", len(o.Items)),
	)
	if err := s.publisher.OrderPlaced(ctx, o); err != nil {
		lg.Warn("Publish order placed", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

func (s *Service) place(ctx context.Context, req PlaceRequest) (*Order, error) {
	payment, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var placed *Order
	err = s.uow.InTx(ctx, func(ctx context.Context, tx Store) error {
		lines, err := tx.Carts().Lines(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		shipping, err := s.resolveAddress(ctx, tx.Addresses(), req.UserID, req.AddressID)
		if err != nil {
			return err
		}

		// Lines arrive ordered by product id, so concurrent placements lock
		// product rows in the same order.
		items := make([]Item, 0, len(lines))
		subtotal := decimal.Zero
		for _, line := range lines {
			p, err := tx.Products().Lock(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return &product.NotFoundError{ID: line.ProductID}
				}
				return errors.Wrapf(err, "lock product %d", line.ProductID)
			}
			if err := p.CheckOrderable(line.Quantity); err != nil {
				return err
			}

			item := Item{ProductID: p.ID, Quantity: line.Quantity, Price: p.Price}
			subtotal = subtotal.Add(item.Subtotal())
			items = append(items, item)

			if err := tx.Products().DecrementStock(ctx, p.ID, line.Quantity); err != nil {
				if errors.Is(err, product.ErrStockConflict) {
					return &product.InsufficientStockError{
						ID: p.ID, Name: p.Name, Requested: line.Quantity, Available: p.Stock,
					}
				}
				return errors.Wrapf(err, "decrement stock %d", p.ID)
			}
		}
		subtotal = subtotal.Round(2)

		discount := decimal.Zero
		var code string
		if req.CouponCode != "" {
			c, err := s.redeem(ctx, tx.Coupons(), req.CouponCode)
			if err != nil {
				return err
			}
			code = c.Code
			discount = coupon.CalculateDiscount(c, subtotal)
		}

		total := subtotal.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		now := s.now()
		o := &Order{
			ID:              s.newID(),
			UserID:          req.UserID,
			Items:           items,
			Subtotal:        subtotal,
			Discount:        discount,
			Total:           total.Round(2),
			CouponCode:      code,
			ShippingAddress: shipping,
			PaymentMethod:   payment,
			Status:          StatusPlaced,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := tx.Carts().Clear(ctx, req.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (s *Service) resolveAddress(
	ctx context.Context,
	repo address.Repository,
	userID int64,
	id *int64,
) (*address.Snapshot, error) {
	var (
		a   *address.Address
		err error
	)
	if id != nil {
		a, err = repo.Get(ctx, userID, *id)
		if errors.Is(err, address.ErrNotFound) {
			return nil, ErrAddressNotFound
		}
	} else {
		a, err = repo.Default(ctx, userID)
		if errors.Is(err, address.ErrNotFound) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve address")
	}

	snap := a.Snapshot()
	return &snap, nil
}

// redeem locks the coupon, re-checks validity and consumes one use.
func (s *Service) redeem(ctx context.Context, repo coupon.Repository, code string) (*coupon.Coupon, error) {
	c, err := repo.LockByCode(ctx, coupon.NormalizeCode(code))
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrap(err, "lock coupon")
	}
	if err := c.Check(s.now()); err != nil {
		return nil, err
	}
	if err := repo.IncrementUsage(ctx, c.ID); err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			return nil, coupon.ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "increment coupon usage")
	}
	return c, nil
}

// GetOrder returns the order if the requester owns it or is an admin.
func (s *Service) GetOrder(ctx context.Context, id string, userID int64, isAdmin bool) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrAccessDenied
	}
	return o, nil
}

// ListOrders returns the user's orders newest first. Admins see every order.
func (s *Service) ListOrders(ctx context.Context, userID int64, isAdmin bool) ([]Order, error) {
	var (
		list []Order
		err  error
	)
	if isAdmin {
		list, err = s.orders.List(ctx)
	} else {
		list, err = s.orders.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return list, nil
}

// UpdateOrderStatus sets the order's status. Any of the five statuses is
// accepted regardless of the current one.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	prev, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	o, err := s.orders.UpdateStatus(ctx, id, st, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update order status")
	}

	if prev.Status != o.Status {
		if err := s.publisher.OrderStatusChanged(ctx, o, prev.Status); err != nil {
			zctx.From(ctx).Warn("Publish order status change",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	return o, nil
}

// Stats returns order totals and the most recent orders.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.orders.Stats(ctx, RecentOrders)
	if err != nil {
		return nil, errors.Wrap(err, "order stats")
	}
	return st, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrAddressNotFound):
		return "address_not_found"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrInvalidCoupon):
		return "invalid_coupon"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	default:
		return "internal"
	}
}
