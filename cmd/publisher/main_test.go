package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

type sinkPublisher struct {
	ids    []string
	failAt int
}

func (p *sinkPublisher) PublishReceipt(ctx context.Context, o domain.ArchivedOrder) error {
	if p.failAt > 0 && len(p.ids)+1 == p.failAt {
		return errors.New("broker down")
	}
	p.ids = append(p.ids, o.ID)
	return nil
}

func seedLedger(t *testing.T, base time.Time, n int) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	for i := 0; i < n; i++ {
		err := s.Append(context.Background(), domain.ArchivedOrder{
			ID:          fmt.Sprintf("o-%d", i),
			TableNumber: 1,
			Total:       decimal.NewFromInt(10),
			CompletedAt: base.Add(time.Duration(i) * time.Hour),
			Status:      domain.OrderCompleted,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestBackfill(t *testing.T) {
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	store := seedLedger(t, base, 4)

	tests := []struct {
		name    string
		window  domain.Window
		failAt  int
		wantIDs []string
		wantErr bool
	}{
		{name: "all oldest first", wantIDs: []string{"o-0", "o-1", "o-2", "o-3"}},
		{name: "window", window: domain.Window{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)}, wantIDs: []string{"o-1", "o-2"}},
		{name: "stops on error", failAt: 2, wantIDs: []string{"o-0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &sinkPublisher{failAt: tt.failAt}
			n, err := backfill(context.Background(), store, pub, tt.window, logger.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("backfill() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != len(tt.wantIDs) || fmt.Sprint(pub.ids) != fmt.Sprint(tt.wantIDs) {
				t.Errorf("published %d %v, want %v", n, pub.ids, tt.wantIDs)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{name: "unbounded"},
		{name: "both", from: "2025-03-01T00:00:00Z", to: "2025-04-01T00:00:00+03:00"},
		{name: "bad from", from: "march", wantErr: true},
		{name: "reversed", from: "2025-04-01T00:00:00Z", to: "2025-03-01T00:00:00Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWindow(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
