package natsstan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stan "github.com/nats-io/stan.go"

	"github.com/example/restaurant-pos/internal/domain"
)

type publishConn interface {
	Publish(subject string, data []byte) error
}

// Publisher — публикация закрытых заказов в канал NATS Streaming.
type Publisher struct {
	conn    publishConn
	closer  func() error
	Subject string
}

// Connect подключается к кластеру; пустой clientID заменяется уникальным.
func Connect(url, clusterID, clientID, subject string) (*Publisher, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("pos-pub-%d", time.Now().UnixNano())
	}
	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(url))
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	return &Publisher{conn: sc, closer: sc.Close, Subject: subject}, nil
}

func (p *Publisher) PublishReceipt(ctx context.Context, o domain.ArchivedOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal receipt %s: %w", o.ID, err)
	}
	// Publish синхронный: возвращается после подтверждения от сервера
	if err := p.conn.Publish(p.Subject, b); err != nil {
		return fmt.Errorf("publish receipt %s: %w", o.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

var _ domain.ReceiptPublisher = (*Publisher)(nil)
