package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
)

// Раскладка ключей:
//
//	table/<номер %010d>              -> domain.Table (json)
//	product/<id>                     -> domain.Product (json)
//	order/<timeKey>/<id>             -> domain.ArchivedOrder (json)
//	orderid/<id>                     -> ключ order/...
const (
	tablePrefix   = "table/"
	productPrefix = "product/"
	orderPrefix   = "order/"
	orderIDPrefix = "orderid/"
	txnRetries    = 3
)

// BadgerStore — встроенное хранилище на Badger. Каждая операция выполняется в своей транзакции.
type BadgerStore struct {
	DB *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{DB: db}
}

func tableKey(n int) []byte       { return []byte(fmt.Sprintf("%s%010d", tablePrefix, n)) }
func productKey(id string) []byte { return []byte(productPrefix + id) }
func orderIDKey(id string) []byte { return []byte(orderIDPrefix + id) }

// timeKey кодирует момент строкой, лексикографический порядок которой совпадает с хронологическим:
// секунды Unix со сброшенным знаковым битом (%016x), затем наносекунды (%09d).
// Годится для дат до 1970 и после 2262, где UnixNano уже переполняется.
func timeKey(t time.Time) string {
	return fmt.Sprintf("%016x%09d", uint64(t.Unix())^(1<<63), t.Nanosecond())
}

func orderKey(o domain.ArchivedOrder) []byte {
	return []byte(orderPrefix + timeKey(o.CompletedAt) + "/" + o.ID)
}

// update повторяет транзакцию при конфликте сериализации.
func (r *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < txnRetries; i++ {
		err = r.DB.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(raw []byte) error { return json.Unmarshal(raw, v) })
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func (r *BadgerStore) ListTables(ctx context.Context) ([]domain.Table, error) {
	out := make([]domain.Table, 0)
	err := r.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tablePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var t domain.Table
			if err := it.Item().Value(func(raw []byte) error { return json.Unmarshal(raw, &t) }); err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return out, nil
}

func (r *BadgerStore) GetTable(ctx context.Context, number int) (domain.Table, bool, error) {
	var t domain.Table
	var ok bool
	err := r.DB.View(func(txn *badger.Txn) error {
		var err error
		ok, err = getJSON(txn, tableKey(number), &t)
		return err
	})
	if err != nil {
		return domain.Table{}, false, fmt.Errorf("get table %d: %w", number, err)
	}
	return t, ok, nil
}

func (r *BadgerStore) AddTable(ctx context.Context) (int, error) {
	var next int
	err := r.update(func(txn *badger.Txn) error {
		next = 1
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tablePrefix)
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		it.Seek([]byte(tablePrefix + "\xff"))
		if it.Valid() {
			last, err := strconv.Atoi(string(it.Item().Key()[len(tablePrefix):]))
			if err != nil {
				it.Close()
				return fmt.Errorf("corrupt table key %q: %w", it.Item().Key(), err)
			}
			next = last + 1
		}
		it.Close()
		return setJSON(txn, tableKey(next), domain.Table{Number: next, Status: domain.TableEmpty})
	})
	if err != nil {
		return 0, fmt.Errorf("add table: %w", err)
	}
	return next, nil
}

func (r *BadgerStore) DeleteTable(ctx context.Context, number int) error {
	return r.update(func(txn *badger.Txn) error {
		var t domain.Table
		ok, err := getJSON(txn, tableKey(number), &t)
		if err != nil {
			return err
		}
		if !ok {
			return domain.TableNotFound(number)
		}
		if t.Status == domain.TableOccupied {
			return domain.OccupiedTableError(number)
		}
		return txn.Delete(tableKey(number))
	})
}

func (r *BadgerStore) SetStatus(ctx context.Context, number int, status domain.TableStatus) error {
	return r.modifyTable(number, func(t *domain.Table) { t.Status = status })
}

func (r *BadgerStore) SavePendingOrder(ctx context.Context, number int, items []domain.OrderLine) error {
	return r.modifyTable(number, func(t *domain.Table) {
		t.PendingOrder = items
		t.Status = domain.TableOccupied
	})
}

func (r *BadgerStore) ClearAndEmpty(ctx context.Context, number int) error {
	return r.modifyTable(number, emptyTable)
}

func emptyTable(t *domain.Table) {
	t.PendingOrder = []domain.OrderLine{}
	t.Status = domain.TableEmpty
}

func (r *BadgerStore) modifyTable(number int, fn func(t *domain.Table)) error {
	return r.update(func(txn *badger.Txn) error {
		var t domain.Table
		ok, err := getJSON(txn, tableKey(number), &t)
		if err != nil {
			return err
		}
		if !ok {
			return domain.TableNotFound(number)
		}
		fn(&t)
		return setJSON(txn, tableKey(number), t)
	})
}

func (r *BadgerStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0)
	err := r.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(productPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var p domain.Product
			if err := it.Item().Value(func(raw []byte) error { return json.Unmarshal(raw, &p) }); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	domain.SortProducts(out)
	return out, nil
}

func (r *BadgerStore) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	var p domain.Product
	var ok bool
	err := r.DB.View(func(txn *badger.Txn) error {
		var err error
		ok, err = getJSON(txn, productKey(id), &p)
		return err
	})
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, ok, nil
}

func (r *BadgerStore) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.ID = uuid.NewString()
	if err := r.update(func(txn *badger.Txn) error { return setJSON(txn, productKey(p.ID), p) }); err != nil {
		return domain.Product{}, fmt.Errorf("add product: %w", err)
	}
	return p, nil
}

func (r *BadgerStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	return r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(productKey(p.ID)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ProductNotFound(p.ID)
		} else if err != nil {
			return err
		}
		return setJSON(txn, productKey(p.ID), p)
	})
}

func (r *BadgerStore) DeleteProduct(ctx context.Context, id string) error {
	return r.update(func(txn *badger.Txn) error { return txn.Delete(productKey(id)) })
}

func (r *BadgerStore) Append(ctx context.Context, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	return r.update(func(txn *badger.Txn) error { return appendOrder(txn, o) })
}

// appendOrder пишет заказ и индекс по id; уже записанный id пропускается.
func appendOrder(txn *badger.Txn, o domain.ArchivedOrder) error {
	_, err := txn.Get(orderIDKey(o.ID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	key := orderKey(o)
	if err := setJSON(txn, key, o); err != nil {
		return err
	}
	return txn.Set(orderIDKey(o.ID), key)
}

// scanOrders обходит журнал от новых к старым в пределах окна.
func (r *BadgerStore) scanOrders(w domain.Window, fn func(o domain.ArchivedOrder)) error {
	return r.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(orderPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte(orderPrefix + "\xff")
		if !w.To.IsZero() {
			start = []byte(orderPrefix + timeKey(w.To) + "/")
		}
		for it.Seek(start); it.Valid(); it.Next() {
			var o domain.ArchivedOrder
			if err := it.Item().Value(func(raw []byte) error { return json.Unmarshal(raw, &o) }); err != nil {
				return err
			}
			if !w.From.IsZero() && o.CompletedAt.Before(w.From) {
				break
			}
			if w.Contains(o.CompletedAt) {
				fn(o)
			}
		}
		return nil
	})
}

func (r *BadgerStore) ListOrders(ctx context.Context, w domain.Window) ([]domain.ArchivedOrder, error) {
	out := make([]domain.ArchivedOrder, 0)
	if err := r.scanOrders(w, func(o domain.ArchivedOrder) { out = append(out, o) }); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (r *BadgerStore) Summarize(ctx context.Context, w domain.Window) (domain.Summary, error) {
	sum := domain.Summary{Revenue: decimal.Zero}
	err := r.scanOrders(w, func(o domain.ArchivedOrder) {
		if o.Status == domain.OrderCompleted {
			sum.Revenue = sum.Revenue.Add(o.Total)
			sum.Count++
		}
	})
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarize orders: %w", err)
	}
	return sum, nil
}

// Checkout — запись в журнал и освобождение стола в одной транзакции Badger.
func (r *BadgerStore) Checkout(ctx context.Context, number int, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	return r.update(func(txn *badger.Txn) error {
		var t domain.Table
		ok, err := getJSON(txn, tableKey(number), &t)
		if err != nil {
			return err
		}
		if !ok {
			return domain.TableNotFound(number)
		}
		if t.Status != domain.TableOccupied {
			return domain.TableNotOccupied(number)
		}
		if err := appendOrder(txn, o); err != nil {
			return err
		}
		emptyTable(&t)
		return setJSON(txn, tableKey(number), t)
	})
}

func (r *BadgerStore) Close(ctx context.Context) error {
	return r.DB.Close()
}

var _ domain.Store = (*BadgerStore)(nil)
