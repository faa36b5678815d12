package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TableStatus — состояние занятости стола.
type TableStatus string

const (
	TableEmpty    TableStatus = "Empty"
	TableOccupied TableStatus = "Occupied"
)

// OrderStatus — статус архивного заказа. В архив попадают только завершённые.
type OrderStatus string

const OrderCompleted OrderStatus = "Completed"

// DefaultCategory подставляется, когда у продукта не указана категория.
const DefaultCategory = "Other"

// Table — стол зала вместе с текущим (незакрытым) заказом.
type Table struct {
	Number       int         `json:"table_number"`
	Status       TableStatus `json:"status"`
	PendingOrder []OrderLine `json:"current_order"`
}

// Clone возвращает копию стола, не разделяющую срез строк заказа.
func (t Table) Clone() Table {
	t.PendingOrder = CloneLines(t.PendingOrder)
	return t
}

// Product — позиция меню.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

// Snapshot фиксирует поля продукта на момент добавления в заказ.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price}
}

// CategoryOrDefault returns the category, or DefaultCategory when it is blank.
func (p Product) CategoryOrDefault() string {
	if p.Category == "" {
		return DefaultCategory
	}
	return p.Category
}

// ProductSnapshot — копия продукта внутри строки заказа.
type ProductSnapshot struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderLine — строка заказа: продукт, количество, сумма по строке.
type OrderLine struct {
	Product   ProductSnapshot `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"total"`
}

// CloneLines копирует срез строк; nil остаётся nil.
func CloneLines(lines []OrderLine) []OrderLine {
	if lines == nil {
		return nil
	}
	out := make([]OrderLine, len(lines))
	copy(out, lines)
	return out
}

// SumLines — сумма line_total по всем строкам.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// CountItems — суммарное количество единиц по всем строкам.
func CountItems(lines []OrderLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// ArchivedOrder — закрытый заказ в журнале. После записи не изменяется.
type ArchivedOrder struct {
	ID          string          `json:"id"`
	TableNumber int             `json:"table_number"`
	Items       []OrderLine     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	CompletedAt time.Time       `json:"date"`
	Status      OrderStatus     `json:"status"`
}

// ItemCount — количество единиц в заказе, как в истории заказов.
func (o ArchivedOrder) ItemCount() int {
	return CountItems(o.Items)
}

// Window — полуинтервал [From, To). Нулевое время снимает ограничение с этой стороны.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	if !w.From.IsZero() && ts.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !ts.Before(w.To) {
		return false
	}
	return true
}

// Summary — агрегат по журналу за окно.
type Summary struct {
	Revenue decimal.Decimal
	Count   int
}
