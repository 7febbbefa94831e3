package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBus publishes events to a RabbitMQ topic exchange with the event type
// as routing key.
type AMQPBus struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPBus dials the broker and declares the exchange.
func NewAMQPBus(url, exchange string) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPBus{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends the event as a persistent JSON message.
func (b *AMQPBus) Publish(ctx context.Context, event Event) error {
	if event.Meta.ID == "" {
		return fmt.Errorf("event meta id is required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = b.channel.PublishWithContext(ctx, b.exchange, string(event.Meta.Type), false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.Meta.ID,
		CorrelationId: event.Meta.CorrelationID,
		Type:          string(event.Meta.Type),
		Timestamp:     event.Meta.Time,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Meta.Type, err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (b *AMQPBus) Close() error {
	if err := b.channel.Close(); err != nil {
		b.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return b.conn.Close()
}
