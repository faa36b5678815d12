package natsstan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
	"github.com/example/restaurant-pos/internal/usecase"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestPublishReceipt(t *testing.T) {
	conn := &fakeConn{}
	p := &Publisher{conn: conn, Subject: "pos.receipts"}
	o := domain.ArchivedOrder{
		ID: "o-9", TableNumber: 2, Total: decimal.RequireFromString("42.50"),
		CompletedAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), Status: domain.OrderCompleted,
	}
	if err := p.PublishReceipt(context.Background(), o); err != nil {
		t.Fatalf("PublishReceipt() error = %v", err)
	}
	if conn.subject != "pos.receipts" {
		t.Errorf("subject = %q", conn.subject)
	}
	var got domain.ArchivedOrder
	if err := json.Unmarshal(conn.data, &got); err != nil {
		t.Fatalf("payload is not an archived order: %v", err)
	}
	if got.ID != "o-9" || !got.Total.Equal(o.Total) || !got.CompletedAt.Equal(o.CompletedAt) {
		t.Errorf("payload = %+v", got)
	}

	conn.err = errors.New("nats: timeout")
	if err := p.PublishReceipt(context.Background(), o); err == nil {
		t.Error("PublishReceipt() with failing connection returned nil")
	}
}

func TestDeliverAcksOnlyOnSuccess(t *testing.T) {
	tests := []struct {
		name       string
		handlerErr error
		wantAck    bool
	}{
		{name: "handled", wantAck: true},
		{name: "handler failed", handlerErr: errors.New("store down"), wantAck: false},
		{name: "wrapped store error", handlerErr: fmt.Errorf("import receipt o-1: %w", errors.New("timeout")), wantAck: false},
		{name: "invalid receipt", handlerErr: &domain.ValidationError{Field: "id", Message: "archived order id is required"}, wantAck: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acked := false
			handler := func(ctx context.Context, raw []byte) error {
				if string(raw) != "payload" {
					t.Errorf("handler got %q", raw)
				}
				return tt.handlerErr
			}
			deliver(logger.Nop(), []byte("payload"), handler, func() error { acked = true; return nil })
			if acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", acked, tt.wantAck)
			}
		})
	}
}

func TestDeliverDropsMalformedReceipts(t *testing.T) {
	importer := usecase.ImportReceipt{Ledger: memory.NewStore()}
	for _, raw := range []string{"not json", `{"id":""}`} {
		acked := false
		deliver(logger.Nop(), []byte(raw), importer.Execute, func() error { acked = true; return nil })
		if !acked {
			t.Errorf("receipt %q was not acked", raw)
		}
	}
}
