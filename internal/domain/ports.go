package domain

import "context"

// TableStore — порт хранения столов и их текущих заказов.
type TableStore interface {
	ListTables(ctx context.Context) ([]Table, error)
	// GetTable возвращает false, если стола нет; это не ошибка.
	GetTable(ctx context.Context, number int) (Table, bool, error)
	AddTable(ctx context.Context) (int, error)
	DeleteTable(ctx context.Context, number int) error
	SetStatus(ctx context.Context, number int, status TableStatus) error
	SavePendingOrder(ctx context.Context, number int, items []OrderLine) error
	ClearAndEmpty(ctx context.Context, number int) error
}

// CatalogStore — порт хранения меню.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, bool, error)
	AddProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	// DeleteProduct молча игнорирует отсутствующий id.
	DeleteProduct(ctx context.Context, id string) error
}

// OrderLedger — журнал закрытых заказов, только добавление.
type OrderLedger interface {
	// Append идемпотентен по ArchivedOrder.ID.
	Append(ctx context.Context, o ArchivedOrder) error
	ListOrders(ctx context.Context, w Window) ([]ArchivedOrder, error)
	Summarize(ctx context.Context, w Window) (Summary, error)
}

// Checkouter атомарно архивирует заказ и освобождает стол.
type Checkouter interface {
	Checkout(ctx context.Context, number int, o ArchivedOrder) error
}

// Store объединяет все порты одного бэкенда.
type Store interface {
	TableStore
	CatalogStore
	OrderLedger
	Checkouter
	Close(ctx context.Context) error
}

// ReceiptPublisher — порт публикации закрытых заказов во внешнюю шину.
type ReceiptPublisher interface {
	PublishReceipt(ctx context.Context, o ArchivedOrder) error
}

// MessageSubscriber — порт подписчика на входящие сообщения.
type MessageSubscriber interface {
	// Subscribe регистрирует обработчик; ack/повторные доставки реализует адаптер.
	Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error
}
