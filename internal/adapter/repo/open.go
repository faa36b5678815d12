package repo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/config"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

// retryWait — пауза перед попыткой i (начиная с 0). Переопределяется в тестах.
var retryWait = func(i int) time.Duration { return time.Duration(i+1) * 2 * time.Second }

// Open подключает хранилище, выбранное в конфигурации. Недоступный бэкенд после
// всех попыток возвращается как *domain.ConnectivityError.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (domain.Store, error) {
	log = logger.OrNop(log)
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverBadger:
		return openWithRetry(ctx, cfg, log, "badger", "check that store.badger.path is writable and not locked by another process",
			func(ctx context.Context) (domain.Store, error) { return OpenBadger(cfg.Badger.Path) })
	case config.DriverPostgres:
		return openWithRetry(ctx, cfg, log, "postgres", "check store.postgres.url and that PostgreSQL is running",
			func(ctx context.Context) (domain.Store, error) { return OpenPostgres(ctx, cfg.Postgres.URL) })
	case config.DriverMongo:
		return openWithRetry(ctx, cfg, log, "mongo", "check store.mongo.uri and that mongod is running",
			func(ctx context.Context) (domain.Store, error) {
				s, err := OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
				if err != nil {
					return nil, err
				}
				n, err := s.Recover(ctx)
				if err != nil {
					_ = s.Close(ctx)
					return nil, fmt.Errorf("recover checkouts: %w", err)
				}
				if n > 0 {
					log.Warn("recovered interrupted checkouts", slog.String("action", "store_recover"), slog.Int("count", n))
				}
				return s, nil
			})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openWithRetry(ctx context.Context, cfg config.StoreConfig, log *slog.Logger, backend, hint string,
	open func(ctx context.Context) (domain.Store, error)) (domain.Store, error) {
	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var s domain.Store
		s, err = open(ctx)
		if err == nil {
			log.Info("store opened", slog.String("action", "store_open"), slog.String("backend", backend))
			return s, nil
		}
		if i == attempts-1 {
			break
		}
		wait := retryWait(i)
		log.Error("store connection failed, retrying",
			slog.String("action", "store_open"), slog.String("backend", backend),
			slog.Duration("wait", wait), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return nil, &domain.ConnectivityError{Backend: backend, Hint: hint, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return nil, &domain.ConnectivityError{
		Backend: backend,
		Hint:    hint,
		Err:     fmt.Errorf("after %d attempts: %w", attempts, err),
	}
}

// OpenBadger открывает базу Badger на диске; пустой путь означает хранилище в памяти.
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(filepath.Clean(path), 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return NewBadgerStore(db), nil
}

// OpenPostgres создаёт пул, проверяет соединение и схему.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return NewPostgresStore(pool), nil
}

// OpenMongo подключается к mongod и создаёт индексы.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s := NewMongoStore(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}
