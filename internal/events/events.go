// Package events publishes order lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-store/internal/domain/order"
)

// Routing keys of published events.
const (
	KeyOrderPlaced        = "order.placed"
	KeyOrderStatusChanged = "order.status_changed"
)

// Nop discards every event.
type Nop struct{}

var _ order.Publisher = Nop{}

func (Nop) OrderPlaced(context.Context, *order.Order) error { return nil }

func (Nop) OrderStatusChanged(context.Context, *order.Order, order.Status) error { return nil }

// encodeEvent renders the JSON body shared by all order events. from is
// empty for placement events.
func encodeEvent(kind string, o *order.Order, from order.Status, at time.Time) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("event", func(e *jx.Encoder) { e.Str(kind) })
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(at.UTC().Format(time.RFC3339Nano)) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Int64(o.UserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		if from != "" {
			e.Field("previous_status", func(e *jx.Encoder) { e.Str(string(from)) })
		}
		e.Field("total", func(e *jx.Encoder) { e.Raw([]byte(o.Total.StringFixed(2))) })
		if o.CouponCode != "" {
			e.Field("coupon_code", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { e.Raw([]byte(it.Price.StringFixed(2))) })
					})
				}
			})
		})
	})

	return append([]byte(nil), e.Bytes()...)
}
