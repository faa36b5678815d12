package natsstan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stan "github.com/nats-io/stan.go"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

// Subscriber — durable-подписка на чеки с ручным подтверждением.
type Subscriber struct {
	ClusterID string
	ClientID  string
	URL       string
	Subject   string
	Durable   string
	Queue     string
	Log       *slog.Logger
}

func (s *Subscriber) Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error {
	clientID := s.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("pos-sub-%d", time.Now().UnixNano())
	}
	queue := s.Queue
	if queue == "" {
		queue = "pos-ledger-workers"
	}
	log := logger.OrNop(s.Log)

	sc, err := stan.Connect(s.ClusterID, clientID, stan.NatsURL(s.URL))
	if err != nil {
		return fmt.Errorf("stan connect: %w", err)
	}
	go func() {
		<-ctx.Done()
		sc.Close()
	}()
	_, err = sc.QueueSubscribe(s.Subject, queue, func(m *stan.Msg) {
		deliver(log, m.Data, handler, m.Ack)
	}, stan.DurableName(s.Durable), stan.SetManualAckMode(), stan.AckWait(10*time.Second), stan.DeliverAllAvailable())
	if err != nil {
		sc.Close()
		return fmt.Errorf("stan subscribe %s: %w", s.Subject, err)
	}
	log.Info("receipt subscription started", slog.String("action", "subscribe"),
		slog.String("subject", s.Subject), slog.String("durable", s.Durable))
	return nil
}

// deliver вызывает обработчик и подтверждает сообщение при успехе или при ошибке
// валидации: битый чек повторная доставка не исправит.
func deliver(log *slog.Logger, data []byte, handler func(ctx context.Context, raw []byte) error, ack func() error) {
	hCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := handler(hCtx, data); err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			// не подтверждаем, даём сообщению переотправиться
			log.Error("receipt handler failed", slog.String("action", "receipt_consume"), slog.Any("error", err))
			return
		}
		log.Warn("receipt rejected", slog.String("action", "receipt_consume"),
			slog.Int("bytes", len(data)), slog.Any("error", err))
	}
	if err := ack(); err != nil {
		log.Error("ack failed", slog.String("action", "receipt_consume"), slog.Any("error", err))
	}
}

var _ domain.MessageSubscriber = (*Subscriber)(nil)
