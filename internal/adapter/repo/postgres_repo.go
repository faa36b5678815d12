package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
)

// PostgresStore хранит документы в jsonb; ключевые поля продублированы в колонках для сортировки и фильтров.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// EnsureSchema — создать необходимые таблицы, если отсутствуют.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS pos_tables (
  number integer PRIMARY KEY,
  doc jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
  id text PRIMARY KEY,
  name text NOT NULL,
  doc jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS archived_orders (
  id text PRIMARY KEY,
  completed_at timestamptz NOT NULL,
  total numeric NOT NULL,
  status text NOT NULL,
  doc jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS archived_orders_completed_at_idx ON archived_orders (completed_at DESC);`)
	return err
}

func (r *PostgresStore) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := r.Pool.Query(ctx, `SELECT doc FROM pos_tables ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Table, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t domain.Table
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresStore) GetTable(ctx context.Context, number int) (domain.Table, bool, error) {
	var raw []byte
	err := r.Pool.QueryRow(ctx, `SELECT doc FROM pos_tables WHERE number = $1`, number).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Table{}, false, nil
	}
	if err != nil {
		return domain.Table{}, false, fmt.Errorf("get table %d: %w", number, err)
	}
	var t domain.Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Table{}, false, fmt.Errorf("decode table %d: %w", number, err)
	}
	return t, true, nil
}

func (r *PostgresStore) AddTable(ctx context.Context) (int, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// номер = max+1, поэтому параллельные вставки сериализуются блокировкой таблицы
	if _, err := tx.Exec(ctx, `LOCK TABLE pos_tables IN EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock tables: %w", err)
	}
	var next int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM pos_tables`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next table number: %w", err)
	}
	raw, err := json.Marshal(domain.Table{Number: next, Status: domain.TableEmpty})
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO pos_tables(number, doc) VALUES($1, $2)`, next, raw); err != nil {
		return 0, fmt.Errorf("insert table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// lockTable читает стол под блокировкой строки внутри tx.
func lockTable(ctx context.Context, tx pgx.Tx, number int) (domain.Table, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT doc FROM pos_tables WHERE number = $1 FOR UPDATE`, number).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Table{}, domain.TableNotFound(number)
	}
	if err != nil {
		return domain.Table{}, err
	}
	var t domain.Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Table{}, fmt.Errorf("decode table %d: %w", number, err)
	}
	return t, nil
}

func writeTable(ctx context.Context, tx pgx.Tx, t domain.Table) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE pos_tables SET doc = $2 WHERE number = $1`, t.Number, raw)
	return err
}

func (r *PostgresStore) DeleteTable(ctx context.Context, number int) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := lockTable(ctx, tx, number)
	if err != nil {
		return err
	}
	if t.Status == domain.TableOccupied {
		return domain.OccupiedTableError(number)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pos_tables WHERE number = $1`, number); err != nil {
		return fmt.Errorf("delete table %d: %w", number, err)
	}
	return tx.Commit(ctx)
}

func (r *PostgresStore) SetStatus(ctx context.Context, number int, status domain.TableStatus) error {
	return r.modifyTable(ctx, number, func(t *domain.Table) { t.Status = status })
}

func (r *PostgresStore) SavePendingOrder(ctx context.Context, number int, items []domain.OrderLine) error {
	return r.modifyTable(ctx, number, func(t *domain.Table) {
		t.PendingOrder = items
		t.Status = domain.TableOccupied
	})
}

func (r *PostgresStore) ClearAndEmpty(ctx context.Context, number int) error {
	return r.modifyTable(ctx, number, emptyTable)
}

func (r *PostgresStore) modifyTable(ctx context.Context, number int, fn func(t *domain.Table)) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := lockTable(ctx, tx, number)
	if err != nil {
		return err
	}
	fn(&t)
	if err := writeTable(ctx, tx, t); err != nil {
		return fmt.Errorf("update table %d: %w", number, err)
	}
	return tx.Commit(ctx)
}

func (r *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.Pool.Query(ctx, `SELECT doc FROM products ORDER BY name COLLATE "C", id COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Product, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p domain.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresStore) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	var raw []byte
	err := r.Pool.QueryRow(ctx, `SELECT doc FROM products WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("get product %s: %w", id, err)
	}
	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Product{}, false, fmt.Errorf("decode product %s: %w", id, err)
	}
	return p, true, nil
}

func (r *PostgresStore) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.ID = uuid.NewString()
	raw, err := json.Marshal(p)
	if err != nil {
		return domain.Product{}, err
	}
	if _, err := r.Pool.Exec(ctx, `INSERT INTO products(id, name, doc) VALUES($1, $2, $3)`, p.ID, p.Name, raw); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *PostgresStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tag, err := r.Pool.Exec(ctx, `UPDATE products SET name = $2, doc = $3 WHERE id = $1`, p.ID, p.Name, raw)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ProductNotFound(p.ID)
	}
	return nil
}

func (r *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	if _, err := r.Pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o domain.ArchivedOrder) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO archived_orders(id, completed_at, total, status, doc)
        VALUES($1, $2, $3::text::numeric, $4, $5) ON CONFLICT (id) DO NOTHING`,
		o.ID, o.CompletedAt, o.Total.String(), string(o.Status), raw)
	return err
}

func (r *PostgresStore) Append(ctx context.Context, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := insertOrder(ctx, tx, o); err != nil {
		return fmt.Errorf("append order %s: %w", o.ID, err)
	}
	return tx.Commit(ctx)
}

// bound превращает нулевую границу окна в NULL.
func bound(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (r *PostgresStore) ListOrders(ctx context.Context, w domain.Window) ([]domain.ArchivedOrder, error) {
	rows, err := r.Pool.Query(ctx, `SELECT doc FROM archived_orders
        WHERE ($1::timestamptz IS NULL OR completed_at >= $1)
          AND ($2::timestamptz IS NULL OR completed_at < $2)
        ORDER BY completed_at DESC, id COLLATE "C" DESC`, bound(w.From), bound(w.To))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := make([]domain.ArchivedOrder, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var o domain.ArchivedOrder
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Summarize считает сумму в numeric на стороне базы и читает её текстом без потери точности.
func (r *PostgresStore) Summarize(ctx context.Context, w domain.Window) (domain.Summary, error) {
	var total string
	var count int64
	err := r.Pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0)::text, COUNT(*) FROM archived_orders
        WHERE status = $3
          AND ($1::timestamptz IS NULL OR completed_at >= $1)
          AND ($2::timestamptz IS NULL OR completed_at < $2)`,
		bound(w.From), bound(w.To), string(domain.OrderCompleted)).Scan(&total, &count)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarize orders: %w", err)
	}
	revenue, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("parse revenue %q: %w", total, err)
	}
	return domain.Summary{Revenue: revenue, Count: int(count)}, nil
}

// Checkout — одна транзакция: блокировка строки стола, запись в журнал, очистка стола.
func (r *PostgresStore) Checkout(ctx context.Context, number int, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := lockTable(ctx, tx, number)
	if err != nil {
		return err
	}
	if t.Status != domain.TableOccupied {
		return domain.TableNotOccupied(number)
	}
	if err := insertOrder(ctx, tx, o); err != nil {
		return fmt.Errorf("archive order %s: %w", o.ID, err)
	}
	emptyTable(&t)
	if err := writeTable(ctx, tx, t); err != nil {
		return fmt.Errorf("clear table %d: %w", number, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout: %w", err)
	}
	return nil
}

func (r *PostgresStore) Close(ctx context.Context) error {
	r.Pool.Close()
	return nil
}

var _ domain.Store = (*PostgresStore)(nil)
