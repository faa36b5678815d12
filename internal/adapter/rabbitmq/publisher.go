// Package rabbitmq publishes receipts to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher — чеки уходят в topic-exchange с постоянной доставкой.
type Publisher struct {
	ch         channel
	closeFn    func() error
	Exchange   string
	RoutingKey string
	Log        *slog.Logger
}

// Dial подключается к брокеру и объявляет exchange.
func Dial(url, exchange, routingKey string, log *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		ch: ch,
		closeFn: func() error {
			_ = ch.Close()
			return conn.Close()
		},
		Exchange:   exchange,
		RoutingKey: routingKey,
		Log:        log,
	}, nil
}

func (p *Publisher) PublishReceipt(ctx context.Context, o domain.ArchivedOrder) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal receipt %s: %w", o.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.Exchange, p.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    o.ID,
		Timestamp:    o.CompletedAt.UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish receipt %s: %w", o.ID, err)
	}
	logger.OrNop(p.Log).Debug("receipt published",
		slog.String("action", "receipt_publish"),
		slog.String("exchange", p.Exchange),
		slog.String("routing_key", p.RoutingKey),
		slog.Int("message_size", len(body)))
	return nil
}

func (p *Publisher) Close() error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}

var _ domain.ReceiptPublisher = (*Publisher)(nil)
