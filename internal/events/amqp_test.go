package events

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-store/internal/domain/order"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func testOrder() *order.Order {
	return &order.Order{
		ID:         "3b241101-e2bb-4255-8caf-4136c566a962",
		UserID:     7,
		Total:      decimal.RequireFromString("17"),
		CouponCode: "SAVE20",
		Status:     order.StatusShipped,
		Items: []order.Item{
			{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10")},
		},
	}
}

func TestAMQPPublisher_OrderPlaced(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "store")
	p.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, p.OrderPlaced(t.Context(), testOrder()))
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "store", sent.exchange)
	assert.Equal(t, KeyOrderPlaced, sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)

	fields := map[string]string{}
	var items int
	err := jx.DecodeBytes(sent.msg.Body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				items++
				return d.Skip()
			})
		default:
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			fields[key] = raw.String()
			return nil
		}
	})
	require.NoError(t, err)

	assert.Equal(t, `"order.placed"`, fields["event"])
	assert.Equal(t, `"3b241101-e2bb-4255-8caf-4136c566a962"`, fields["order_id"])
	assert.Equal(t, "7", fields["user_id"])
	assert.Equal(t, "17.00", fields["total"])
	assert.Equal(t, `"SAVE20"`, fields["coupon_code"])
	assert.Equal(t, `"2025-01-02T03:04:05Z"`, fields["occurred_at"])
	assert.NotContains(t, fields, "previous_status")
	assert.Equal(t, 1, items)
}

func TestAMQPPublisher_OrderStatusChanged(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "store")

	require.NoError(t, p.OrderStatusChanged(t.Context(), testOrder(), order.StatusPlaced))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, KeyOrderStatusChanged, ch.sent[0].key)
	assert.Contains(t, string(ch.sent[0].msg.Body), `"previous_status":"PLACED"`)
	assert.Contains(t, string(ch.sent[0].msg.Body), `"status":"SHIPPED"`)
}

func TestAMQPPublisher_Errors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newPublisher(ch, "store")
	require.Error(t, p.OrderPlaced(t.Context(), testOrder()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, newPublisher(&fakeChannel{}, "store").OrderPlaced(ctx, testOrder()), context.Canceled)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
