package events

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/streadway/amqp"

	"github.com/xenking/kart-store/internal/domain/order"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes order events to a topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

var _ order.Publisher = (*AMQPPublisher)(nil)

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}

	p := newPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, now: time.Now}
}

// OrderPlaced publishes an order.placed event.
func (p *AMQPPublisher) OrderPlaced(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, KeyOrderPlaced, encodeEvent(KeyOrderPlaced, o, "", p.now()))
}

// OrderStatusChanged publishes an order.status_changed event.
func (p *AMQPPublisher) OrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) error {
	return p.publish(ctx, KeyOrderStatusChanged, encodeEvent(KeyOrderStatusChanged, o, from, p.now()))
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if err != nil {
		err = errors.Wrap(err, "close channel")
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close connection")
		}
	}
	return err
}
