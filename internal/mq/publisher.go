package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys of the domain events.
const (
	KeyPaymentsGenerated = "payments.generated"
	KeyPaymentConverted  = "payment.converted"
	KeyPaymentPaid       = "payment.paid"
	KeyDuplicatesRemoved = "payments.duplicates_removed"
	KeyMembershipOptedIn = "membership.opted_in"
)

// Publisher sends JSON events. Services treat delivery as best effort.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every event. Used when AMQP_URL is not configured.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }
func (Nop) Close() error                                   { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	Events []Event
	Err    error
}

type Event struct {
	Key     string
	Payload any
}

func (r *Recorder) PublishJSON(_ context.Context, key string, v any) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, Event{Key: key, Payload: v})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Keys lists the routing keys in publish order.
func (r *Recorder) Keys() []string {
	keys := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		keys = append(keys, e.Key)
	}
	return keys
}
