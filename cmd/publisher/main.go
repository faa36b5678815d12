// Command publisher повторно публикует закрытые заказы из журнала в шину чеков,
// например после простоя брокера.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/restaurant-pos/internal/adapter/natsstan"
	"github.com/example/restaurant-pos/internal/adapter/rabbitmq"
	"github.com/example/restaurant-pos/internal/adapter/repo"
	"github.com/example/restaurant-pos/internal/config"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	fromFlag := flag.String("from", "", "window start, RFC 3339 (inclusive)")
	toFlag := flag.String("to", "", "window end, RFC 3339 (exclusive)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New("pos-publisher", cfg.Log.Level, os.Stdout)

	w, err := parseWindow(*fromFlag, *toFlag)
	if err != nil {
		log.Error("bad window", slog.String("action", "backfill"), slog.Any("error", err))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := repo.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Error("store unreachable", slog.String("action", "startup"), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close(context.Background())

	pub, closePub, err := dialPublisher(cfg.Events, log)
	if err != nil {
		log.Error("publisher connect failed", slog.String("action", "startup"), slog.Any("error", err))
		os.Exit(1)
	}
	defer closePub()

	n, err := backfill(ctx, store, pub, w, log)
	if err != nil {
		log.Error("backfill failed", slog.String("action", "backfill"), slog.Int("published", n), slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("backfill done", slog.String("action", "backfill"), slog.Int("published", n))
}

func parseWindow(from, to string) (domain.Window, error) {
	var w domain.Window
	var err error
	if from != "" {
		if w.From, err = time.Parse(time.RFC3339, from); err != nil {
			return w, fmt.Errorf("-from: %w", err)
		}
	}
	if to != "" {
		if w.To, err = time.Parse(time.RFC3339, to); err != nil {
			return w, fmt.Errorf("-to: %w", err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To) {
		return w, fmt.Errorf("-from must be before -to")
	}
	return w, nil
}

func dialPublisher(ev config.EventsConfig, log *slog.Logger) (domain.ReceiptPublisher, func() error, error) {
	switch ev.Driver {
	case config.EventsNATS:
		p, err := natsstan.Connect(ev.NATS.URL, ev.NATS.ClusterID, ev.NATS.ClientID, ev.NATS.Subject)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.EventsAMQP:
		p, err := rabbitmq.Dial(ev.AMQP.URL, ev.AMQP.Exchange, ev.AMQP.RoutingKey, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("events.driver=%q: nothing to publish to", ev.Driver)
	}
}

// backfill публикует заказы окна от старых к новым и останавливается на первой ошибке.
func backfill(ctx context.Context, ledger domain.OrderLedger, pub domain.ReceiptPublisher, w domain.Window, log *slog.Logger) (int, error) {
	orders, err := ledger.ListOrders(ctx, w)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if err := pub.PublishReceipt(ctx, o); err != nil {
			return n, fmt.Errorf("publish %s: %w", o.ID, err)
		}
		n++
		log.Debug("receipt published", slog.String("action", "backfill"), slog.String("order_id", o.ID))
	}
	return n, nil
}
