package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/restaurant-pos/internal/adapter/httpapi"
	"github.com/example/restaurant-pos/internal/adapter/natsstan"
	"github.com/example/restaurant-pos/internal/adapter/rabbitmq"
	"github.com/example/restaurant-pos/internal/adapter/repo"
	"github.com/example/restaurant-pos/internal/config"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
	"github.com/example/restaurant-pos/internal/usecase"
)

type App struct {
	store     domain.Store
	publisher domain.ReceiptPublisher
	closers   []func() error
	router    http.Handler
	log       *slog.Logger
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New("pos-server", cfg.Log.Level, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		var connErr *domain.ConnectivityError
		if errors.As(err, &connErr) {
			log.Error("store unreachable", slog.String("action", "startup"),
				slog.String("backend", connErr.Backend), slog.String("hint", connErr.Hint), slog.Any("error", connErr.Err))
		} else {
			log.Error("startup failed", slog.String("action", "startup"), slog.Any("error", err))
		}
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: app.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", slog.String("action", "http_listen"), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", slog.String("action", "http_listen"), slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("server stopped", slog.String("action", "shutdown"))
}

// newApp открывает хранилище, заполняет пустую базу стартовыми данными и
// подключает шину чеков согласно cfg.Events.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := repo.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	a := &App{store: store, log: log}

	if _, err := (usecase.Bootstrap{Tables: store, Catalog: store, Log: log}).Execute(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	if err := a.connectEvents(ctx, cfg.Events); err != nil {
		a.Close()
		return nil, err
	}

	a.router = httpapi.NewServer(httpapi.Options{
		Store:     store,
		Publisher: a.publisher,
		Location:  loc,
		Log:       log,
	}).Router
	return a, nil
}

func (a *App) connectEvents(ctx context.Context, ev config.EventsConfig) error {
	switch ev.Driver {
	case config.EventsNATS:
		pub, err := natsstan.Connect(ev.NATS.URL, ev.NATS.ClusterID, ev.NATS.ClientID, ev.NATS.Subject)
		if err != nil {
			return err
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)

		if ev.Subscribe {
			sub := &natsstan.Subscriber{
				ClusterID: ev.NATS.ClusterID,
				URL:       ev.NATS.URL,
				Subject:   ev.NATS.Subject,
				Durable:   ev.NATS.Durable,
				Log:       a.log,
			}
			imp := usecase.ImportReceipt{Ledger: a.store, Log: a.log}
			if err := sub.Subscribe(ctx, imp.Execute); err != nil {
				return err
			}
		}
	case config.EventsAMQP:
		pub, err := rabbitmq.Dial(ev.AMQP.URL, ev.AMQP.Exchange, ev.AMQP.RoutingKey, a.log)
		if err != nil {
			return err
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}
	return nil
}

// Close закрывает шину, затем хранилище.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("close failed", slog.String("action", "shutdown"), slog.Any("error", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		a.log.Error("store close failed", slog.String("action", "shutdown"), slog.Any("error", err))
	}
}
