package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/session"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

type recordingPublisher struct {
	mu  sync.Mutex
	got []domain.ArchivedOrder
	err error
}

func (p *recordingPublisher) PublishReceipt(ctx context.Context, o domain.ArchivedOrder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, o)
	return p.err
}

func mustProduct(t *testing.T, s *memory.Store, name, price, category string) domain.Product {
	t.Helper()
	p, err := s.AddProduct(context.Background(), domain.Product{Name: name, Price: dec(price), Category: category})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mustTables(t *testing.T, s *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.AddTable(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func sessionWith(ps ...domain.Product) *session.Session {
	s := session.New()
	for _, p := range ps {
		s.Add(p)
	}
	return s
}
