// Package events implements the broker's event fan-out to operators (C9):
// an AMQP-backed publisher grounded on the teacher's sibling
// infrastructure/messaging/rabbitmq.go and infrastructure/events/
// room_publisher.go, and a no-op publisher selected when no AMQP URL is
// configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hilthontt/syncbroker/internal/broker"
	"github.com/hilthontt/syncbroker/internal/domain"
)

const (
	exchangeName = "room.lifecycle"
	queueName    = "room.lifecycle.audit"
)

var _ broker.EventPublisher = (*AMQPPublisher)(nil)
var _ broker.EventPublisher = (*NoopPublisher)(nil)

// AMQPPublisher publishes each RoomAuditEvent onto a topic exchange,
// routed by event type, mirroring the teacher's RoomPublisher's one
// PublishXxx-per-event-type shape collapsed onto a single Publish(event).
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher dials uri and declares the lifecycle exchange plus a
// durable queue bound to it, with a dead-letter exchange the way the
// teacher's declareAndBindQueue does.
func NewAMQPPublisher(uri string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("events: dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}

	dlx := exchangeName + ".dlx"
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare dead-letter exchange: %w", err)
	}

	_, err = ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": dlx,
	})
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, "#", exchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: bind queue: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.RoomAuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx, exchangeName, string(event.EventType), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NoopPublisher discards every event. Selected when SYNCBROKER_EVENTS_AMQPURL is
// unset.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.RoomAuditEvent) error { return nil }
