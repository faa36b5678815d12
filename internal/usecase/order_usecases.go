package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
	"github.com/example/restaurant-pos/internal/session"
)

// ErrEmptyOrder — попытка сохранить или закрыть заказ без позиций.
var ErrEmptyOrder = &domain.ValidationError{Field: "items", Message: "order has no items"}

// SaveOrder — сохранить сессию как текущий заказ стола; стол становится занятым.
type SaveOrder struct {
	Tables domain.TableStore
	Log    *slog.Logger
}

func (uc SaveOrder) Execute(ctx context.Context, number int, s *session.Session) error {
	if s == nil || s.Empty() {
		return ErrEmptyOrder
	}
	if err := uc.Tables.SavePendingOrder(ctx, number, s.Lines()); err != nil {
		return err
	}
	logger.OrNop(uc.Log).Info("order saved",
		slog.String("action", "order_save"),
		slog.Int("table", number),
		slog.Int("lines", s.Len()),
		slog.String("total", s.Total().String()))
	return nil
}

// Checkout — закрыть заказ: архивировать и освободить стол одной операцией хранилища.
//
// После успешной записи чек публикуется в Publisher, если он задан. Ошибка публикации
// только логируется: закрытый заказ уже в журнале.
type Checkout struct {
	Store     domain.Checkouter
	Publisher domain.ReceiptPublisher
	Now       func() time.Time
	NewID     func() string
	Log       *slog.Logger
}

func (uc Checkout) Execute(ctx context.Context, number int, s *session.Session, total decimal.Decimal) (domain.ArchivedOrder, error) {
	if s == nil || s.Empty() {
		return domain.ArchivedOrder{}, ErrEmptyOrder
	}
	now, newID := uc.Now, uc.NewID
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	o := domain.ArchivedOrder{
		ID:          newID(),
		TableNumber: number,
		Items:       s.Lines(),
		Total:       total,
		CompletedAt: now(),
		Status:      domain.OrderCompleted,
	}
	if err := uc.Store.Checkout(ctx, number, o); err != nil {
		return domain.ArchivedOrder{}, err
	}

	log := logger.OrNop(uc.Log)
	log.Info("order completed",
		slog.String("action", "checkout"),
		slog.String("order_id", o.ID),
		slog.Int("table", number),
		slog.String("total", total.String()))

	if uc.Publisher != nil {
		if err := uc.Publisher.PublishReceipt(ctx, o); err != nil {
			log.Error("receipt publish failed",
				slog.String("action", "receipt_publish"),
				slog.String("order_id", o.ID),
				slog.Any("error", err))
		}
	}
	return o, nil
}

// HistoryEntry — строка истории заказов с количеством позиций.
type HistoryEntry struct {
	domain.ArchivedOrder
	ItemCount int `json:"item_count"`
}

// OrderHistory — закрытые заказы за окно, от новых к старым.
type OrderHistory struct {
	Ledger domain.OrderLedger
}

func (uc OrderHistory) Execute(ctx context.Context, w domain.Window) ([]HistoryEntry, error) {
	orders, err := uc.Ledger.ListOrders(ctx, w)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(orders))
	for _, o := range orders {
		if o.Status != domain.OrderCompleted {
			continue
		}
		out = append(out, HistoryEntry{ArchivedOrder: o, ItemCount: o.ItemCount()})
	}
	return out, nil
}

// ImportReceipt — записать в журнал чек, полученный из шины. Повторная доставка безопасна.
type ImportReceipt struct {
	Ledger domain.OrderLedger
	Log    *slog.Logger
}

func (uc ImportReceipt) Execute(ctx context.Context, raw []byte) error {
	var o domain.ArchivedOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return &domain.ValidationError{Field: "receipt", Message: fmt.Sprintf("malformed json: %v", err)}
	}
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	if err := uc.Ledger.Append(ctx, o); err != nil {
		return fmt.Errorf("import receipt %s: %w", o.ID, err)
	}
	logger.OrNop(uc.Log).Info("receipt imported",
		slog.String("action", "receipt_import"),
		slog.String("order_id", o.ID),
		slog.Int("table", o.TableNumber))
	return nil
}
