package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
)

// Store — хранилище в памяти процесса. Используется в тестах и при store.driver=memory.
type Store struct {
	mu       sync.RWMutex
	tables   map[int]domain.Table
	products map[string]domain.Product
	orders   map[string]domain.ArchivedOrder
}

func NewStore() *Store {
	return &Store{
		tables:   make(map[int]domain.Table),
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.ArchivedOrder),
	}
}

func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) GetTable(ctx context.Context, number int) (domain.Table, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[number]
	return t.Clone(), ok, nil
}

func (s *Store) AddTable(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 1
	for n := range s.tables {
		if n >= next {
			next = n + 1
		}
	}
	s.tables[next] = domain.Table{Number: next, Status: domain.TableEmpty}
	return next, nil
}

func (s *Store) DeleteTable(ctx context.Context, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[number]
	if !ok {
		return domain.TableNotFound(number)
	}
	if t.Status == domain.TableOccupied {
		return domain.OccupiedTableError(number)
	}
	delete(s.tables, number)
	return nil
}

func (s *Store) SetStatus(ctx context.Context, number int, status domain.TableStatus) error {
	return s.updateTable(number, func(t *domain.Table) { t.Status = status })
}

func (s *Store) SavePendingOrder(ctx context.Context, number int, items []domain.OrderLine) error {
	return s.updateTable(number, func(t *domain.Table) {
		t.PendingOrder = domain.CloneLines(items)
		t.Status = domain.TableOccupied
	})
}

func (s *Store) ClearAndEmpty(ctx context.Context, number int) error {
	return s.updateTable(number, clearTable)
}

func (s *Store) updateTable(number int, fn func(t *domain.Table)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[number]
	if !ok {
		return domain.TableNotFound(number)
	}
	fn(&t)
	s.tables[number] = t
	return nil
}

func clearTable(t *domain.Table) {
	t.PendingOrder = []domain.OrderLine{}
	t.Status = domain.TableEmpty
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	domain.SortProducts(out)
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok, nil
}

func (s *Store) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return domain.ProductNotFound(p.ID)
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.products, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) Append(ctx context.Context, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(o)
	return nil
}

// appendLocked ожидает удерживаемый s.mu; повторная запись того же id игнорируется.
func (s *Store) appendLocked(o domain.ArchivedOrder) {
	if _, dup := s.orders[o.ID]; dup {
		return
	}
	o.Items = domain.CloneLines(o.Items)
	s.orders[o.ID] = o
}

func (s *Store) ListOrders(ctx context.Context, w domain.Window) ([]domain.ArchivedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ArchivedOrder, 0)
	for _, o := range s.orders {
		if w.Contains(o.CompletedAt) {
			o.Items = domain.CloneLines(o.Items)
			out = append(out, o)
		}
	}
	domain.SortNewestFirst(out)
	return out, nil
}

func (s *Store) Summarize(ctx context.Context, w domain.Window) (domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := domain.Summary{Revenue: decimal.Zero}
	for _, o := range s.orders {
		if o.Status == domain.OrderCompleted && w.Contains(o.CompletedAt) {
			sum.Revenue = sum.Revenue.Add(o.Total)
			sum.Count++
		}
	}
	return sum, nil
}

// Checkout выполняется под одной блокировкой: журнал и стол меняются вместе.
func (s *Store) Checkout(ctx context.Context, number int, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[number]
	if !ok {
		return domain.TableNotFound(number)
	}
	if t.Status != domain.TableOccupied {
		return domain.TableNotOccupied(number)
	}
	s.appendLocked(o)
	clearTable(&t)
	s.tables[number] = t
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

var _ domain.Store = (*Store)(nil)
