package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
	"github.com/example/restaurant-pos/internal/session"
)

// ListTables — все столы по возрастанию номера.
type ListTables struct {
	Tables domain.TableStore
}

func (uc ListTables) Execute(ctx context.Context) ([]domain.Table, error) {
	return uc.Tables.ListTables(ctx)
}

// GetTable — стол по номеру; отсутствие стола возвращается как *domain.NotFoundError.
type GetTable struct {
	Tables domain.TableStore
}

func (uc GetTable) Execute(ctx context.Context, number int) (domain.Table, error) {
	t, ok, err := uc.Tables.GetTable(ctx, number)
	if err != nil {
		return domain.Table{}, err
	}
	if !ok {
		return domain.Table{}, domain.TableNotFound(number)
	}
	return t, nil
}

// OpenTable — загрузить текущий заказ стола в новую сессию.
type OpenTable struct {
	Tables domain.TableStore
}

func (uc OpenTable) Execute(ctx context.Context, number int) (*session.Session, error) {
	t, err := GetTable{Tables: uc.Tables}.Execute(ctx, number)
	if err != nil {
		return nil, err
	}
	return session.FromTable(t), nil
}

// AddTable — добавить стол с номером max+1.
type AddTable struct {
	Tables domain.TableStore
	Log    *slog.Logger
}

func (uc AddTable) Execute(ctx context.Context) (int, error) {
	n, err := uc.Tables.AddTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("add table: %w", err)
	}
	logger.OrNop(uc.Log).Info("table added", slog.String("action", "table_add"), slog.Int("table", n))
	return n, nil
}

// DeleteTable — удалить свободный стол.
type DeleteTable struct {
	Tables domain.TableStore
	Log    *slog.Logger
}

func (uc DeleteTable) Execute(ctx context.Context, number int) error {
	if err := uc.Tables.DeleteTable(ctx, number); err != nil {
		return err
	}
	logger.OrNop(uc.Log).Info("table deleted", slog.String("action", "table_delete"), slog.Int("table", number))
	return nil
}

// RemoveLastTable — удалить стол с наибольшим номером (кнопка «убрать стол» на плане зала).
type RemoveLastTable struct {
	Tables domain.TableStore
	Log    *slog.Logger
}

func (uc RemoveLastTable) Execute(ctx context.Context) (int, error) {
	ts, err := uc.Tables.ListTables(ctx)
	if err != nil {
		return 0, err
	}
	if len(ts) == 0 {
		return 0, &domain.NotFoundError{Entity: "table", Key: "last"}
	}
	last := ts[len(ts)-1].Number
	if err := (DeleteTable{Tables: uc.Tables, Log: uc.Log}).Execute(ctx, last); err != nil {
		return 0, err
	}
	return last, nil
}
