// Package storetest is a conformance suite run against every domain.Store backend.
//
// Each backend package calls Run from its own _test.go file with a factory that
// returns an empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) domain.Store

// Run executes the whole suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s domain.Store)
	}{
		{"TableNumbering", testTableNumbering},
		{"GetAbsentTable", testGetAbsentTable},
		{"DeleteTable", testDeleteTable},
		{"PendingOrderLifecycle", testPendingOrderLifecycle},
		{"MutateAbsentTable", testMutateAbsentTable},
		{"ProductCRUD", testProductCRUD},
		{"ProductOrdering", testProductOrdering},
		{"LedgerAppendIdempotent", testLedgerAppendIdempotent},
		{"LedgerRejectsIncomplete", testLedgerRejectsIncomplete},
		{"LedgerWindow", testLedgerWindow},
		{"Checkout", testCheckout},
		{"CheckoutRequiresOccupied", testCheckoutRequiresOccupied},
		{"CheckoutReplay", testCheckoutReplay},
		{"SnapshotSurvivesCatalogEdit", testSnapshotSurvivesCatalogEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var base = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(id, name, price string, qty int) domain.OrderLine {
	p := dec(price)
	return domain.OrderLine{
		Product:   domain.ProductSnapshot{ID: id, Name: name, Price: p},
		Quantity:  qty,
		LineTotal: p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func archived(id string, table int, at time.Time, lines ...domain.OrderLine) domain.ArchivedOrder {
	return domain.ArchivedOrder{
		ID:          id,
		TableNumber: table,
		Items:       lines,
		Total:       domain.SumLines(lines),
		CompletedAt: at,
		Status:      domain.OrderCompleted,
	}
}

func mustAddTables(t *testing.T, s domain.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.AddTable(context.Background()); err != nil {
			t.Fatalf("AddTable() error = %v", err)
		}
	}
}

func mustTable(t *testing.T, s domain.Store, number int) domain.Table {
	t.Helper()
	tbl, ok, err := s.GetTable(context.Background(), number)
	if err != nil {
		t.Fatalf("GetTable(%d) error = %v", number, err)
	}
	if !ok {
		t.Fatalf("GetTable(%d): table missing", number)
	}
	return tbl
}

func tableNumbers(t *testing.T, s domain.Store) []int {
	t.Helper()
	ts, err := s.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	out := make([]int, len(ts))
	for i, tbl := range ts {
		out[i] = tbl.Number
	}
	return out
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameLines(a, b []domain.OrderLine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Product.ID != b[i].Product.ID ||
			a[i].Product.Name != b[i].Product.Name ||
			!a[i].Product.Price.Equal(b[i].Product.Price) ||
			a[i].Quantity != b[i].Quantity ||
			!a[i].LineTotal.Equal(b[i].LineTotal) {
			return false
		}
	}
	return true
}

func testTableNumbering(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		got, err := s.AddTable(ctx)
		if err != nil {
			t.Fatalf("AddTable() error = %v", err)
		}
		if got != want {
			t.Errorf("AddTable() = %d, want %d", got, want)
		}
	}
	tbl := mustTable(t, s, 2)
	if tbl.Status != domain.TableEmpty || len(tbl.PendingOrder) != 0 {
		t.Errorf("new table = %+v, want Empty without pending order", tbl)
	}

	if err := s.DeleteTable(ctx, 2); err != nil {
		t.Fatalf("DeleteTable(2) error = %v", err)
	}
	got, err := s.AddTable(ctx)
	if err != nil {
		t.Fatalf("AddTable() error = %v", err)
	}
	if got != 4 {
		t.Errorf("AddTable() after gap = %d, want 4", got)
	}
	if nums := tableNumbers(t, s); !sameInts(nums, []int{1, 3, 4}) {
		t.Errorf("ListTables() numbers = %v, want [1 3 4]", nums)
	}
}

func testGetAbsentTable(t *testing.T, s domain.Store) {
	_, ok, err := s.GetTable(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetTable(42) error = %v", err)
	}
	if ok {
		t.Error("GetTable(42) reported an absent table as present")
	}
}

func testDeleteTable(t *testing.T, s domain.Store) {
	ctx := context.Background()
	mustAddTables(t, s, 2)
	if err := s.SavePendingOrder(ctx, 1, []domain.OrderLine{line("p1", "Tea", "15", 1)}); err != nil {
		t.Fatalf("SavePendingOrder() error = %v", err)
	}

	tests := []struct {
		name    string
		number  int
		wantErr error
	}{
		{name: "occupied", number: 1, wantErr: domain.ErrConflict},
		{name: "absent", number: 9, wantErr: domain.ErrNotFound},
		{name: "empty", number: 2, wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.DeleteTable(ctx, tt.number)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DeleteTable(%d) error = %v, want %v", tt.number, err, tt.wantErr)
			}
		})
	}
	if nums := tableNumbers(t, s); !sameInts(nums, []int{1}) {
		t.Errorf("tables after deletes = %v, want [1]", nums)
	}
	if tbl := mustTable(t, s, 1); tbl.Status != domain.TableOccupied || len(tbl.PendingOrder) != 1 {
		t.Errorf("occupied table changed by refused delete: %+v", tbl)
	}
}

func testPendingOrderLifecycle(t *testing.T, s domain.Store) {
	ctx := context.Background()
	mustAddTables(t, s, 1)

	lines := []domain.OrderLine{line("p1", "Latte", "12.50", 2), line("p2", "Toast", "35", 1)}
	if err := s.SavePendingOrder(ctx, 1, lines); err != nil {
		t.Fatalf("SavePendingOrder() error = %v", err)
	}
	tbl := mustTable(t, s, 1)
	if tbl.Status != domain.TableOccupied {
		t.Errorf("status = %s, want Occupied", tbl.Status)
	}
	if !sameLines(tbl.PendingOrder, lines) {
		t.Errorf("pending order = %+v, want %+v", tbl.PendingOrder, lines)
	}

	if err := s.SavePendingOrder(ctx, 1, nil); err != nil {
		t.Fatalf("SavePendingOrder(empty) error = %v", err)
	}
	tbl = mustTable(t, s, 1)
	if tbl.Status != domain.TableOccupied || len(tbl.PendingOrder) != 0 {
		t.Errorf("after empty save = %+v, want Occupied with no lines", tbl)
	}

	if err := s.SetStatus(ctx, 1, domain.TableEmpty); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if tbl = mustTable(t, s, 1); tbl.Status != domain.TableEmpty {
		t.Errorf("status after SetStatus = %s, want Empty", tbl.Status)
	}

	if err := s.SavePendingOrder(ctx, 1, lines); err != nil {
		t.Fatalf("SavePendingOrder() error = %v", err)
	}
	if err := s.ClearAndEmpty(ctx, 1); err != nil {
		t.Fatalf("ClearAndEmpty() error = %v", err)
	}
	tbl = mustTable(t, s, 1)
	if tbl.Status != domain.TableEmpty || len(tbl.PendingOrder) != 0 {
		t.Errorf("after ClearAndEmpty = %+v, want Empty with no lines", tbl)
	}
}

func testMutateAbsentTable(t *testing.T, s domain.Store) {
	ctx := context.Background()
	ops := []struct {
		name string
		fn   func() error
	}{
		{"SetStatus", func() error { return s.SetStatus(ctx, 7, domain.TableOccupied) }},
		{"SavePendingOrder", func() error { return s.SavePendingOrder(ctx, 7, nil) }},
		{"ClearAndEmpty", func() error { return s.ClearAndEmpty(ctx, 7) }},
		{"DeleteTable", func() error { return s.DeleteTable(ctx, 7) }},
	}
	for _, op := range ops {
		if err := op.fn(); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s on absent table error = %v, want ErrNotFound", op.name, err)
		}
	}
	if nums := tableNumbers(t, s); len(nums) != 0 {
		t.Errorf("absent-table mutations created tables %v", nums)
	}
}

func testProductCRUD(t *testing.T, s domain.Store) {
	ctx := context.Background()
	a, err := s.AddProduct(ctx, domain.Product{Name: "Latte", Price: dec("30.50"), Category: "Beverages"})
	if err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
	b, err := s.AddProduct(ctx, domain.Product{Name: "Latte", Price: dec("31"), Category: "Beverages"})
	if err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("AddProduct() ids = %q, %q, want distinct non-empty", a.ID, b.ID)
	}

	got, ok, err := s.GetProduct(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("GetProduct(%s) = %v, %v", a.ID, ok, err)
	}
	if got.Name != "Latte" || !got.Price.Equal(dec("30.5")) || got.Category != "Beverages" {
		t.Errorf("GetProduct() = %+v", got)
	}

	edit := got
	edit.Name = "Oat Latte"
	edit.Price = dec("33")
	if err := s.UpdateProduct(ctx, edit); err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	got, _, _ = s.GetProduct(ctx, a.ID)
	if got.ID != a.ID || got.Name != "Oat Latte" || !got.Price.Equal(dec("33")) {
		t.Errorf("after UpdateProduct = %+v", got)
	}

	missing := domain.Product{ID: "does-not-exist", Name: "Ghost", Price: dec("1")}
	if err := s.UpdateProduct(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateProduct(absent) error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteProduct(ctx, b.ID); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}
	if err := s.DeleteProduct(ctx, b.ID); err != nil {
		t.Errorf("DeleteProduct(absent) error = %v, want nil", err)
	}
	if _, ok, _ := s.GetProduct(ctx, b.ID); ok {
		t.Error("deleted product still readable")
	}
}

func testProductOrdering(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for _, name := range []string{"Tea", "Ayran", "Kofte", "Baklava"} {
		if _, err := s.AddProduct(ctx, domain.Product{Name: name, Price: dec("10"), Category: "X"}); err != nil {
			t.Fatalf("AddProduct(%s) error = %v", name, err)
		}
	}
	ps, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	want := []string{"Ayran", "Baklava", "Kofte", "Tea"}
	if len(ps) != len(want) {
		t.Fatalf("ListProducts() len = %d, want %d", len(ps), len(want))
	}
	for i, name := range want {
		if ps[i].Name != name {
			t.Errorf("ListProducts()[%d] = %s, want %s", i, ps[i].Name, name)
		}
	}
}

func testLedgerAppendIdempotent(t *testing.T, s domain.Store) {
	ctx := context.Background()
	o := archived("o-1", 3, base, line("p1", "Tea", "15", 2))
	for i := 0; i < 2; i++ {
		if err := s.Append(ctx, o); err != nil {
			t.Fatalf("Append() #%d error = %v", i, err)
		}
	}
	orders, err := s.ListOrders(ctx, domain.Window{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("ListOrders() len = %d, want 1", len(orders))
	}
	got := orders[0]
	if got.ID != "o-1" || got.TableNumber != 3 || got.Status != domain.OrderCompleted ||
		!got.Total.Equal(dec("30")) || !got.CompletedAt.Equal(base) || !sameLines(got.Items, o.Items) {
		t.Errorf("stored order = %+v, want %+v", got, o)
	}
}

func testLedgerRejectsIncomplete(t *testing.T, s domain.Store) {
	o := archived("", 1, base, line("p1", "Tea", "15", 1))
	if err := s.Append(context.Background(), o); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Append(no id) error = %v, want ErrValidation", err)
	}
}

func testLedgerWindow(t *testing.T, s domain.Store) {
	ctx := context.Background()
	orders := []domain.ArchivedOrder{
		archived("a", 1, base.Add(-48*time.Hour), line("p1", "Tea", "15", 1)),
		archived("b", 2, base, line("p2", "Latte", "30", 1)),
		archived("c", 1, base.Add(time.Hour), line("p3", "Kofte", "95", 2)),
		archived("d", 4, base.Add(24*time.Hour), line("p4", "Baklava", "50", 1)),
	}
	for _, o := range orders {
		if err := s.Append(ctx, o); err != nil {
			t.Fatalf("Append(%s) error = %v", o.ID, err)
		}
	}

	tests := []struct {
		name      string
		w         domain.Window
		wantIDs   []string
		wantTotal string
	}{
		{name: "unbounded", w: domain.Window{}, wantIDs: []string{"d", "c", "b", "a"}, wantTotal: "285"},
		{name: "from inclusive", w: domain.Window{From: base}, wantIDs: []string{"d", "c", "b"}, wantTotal: "270"},
		{name: "to exclusive", w: domain.Window{To: base.Add(time.Hour)}, wantIDs: []string{"b", "a"}, wantTotal: "45"},
		{name: "day", w: domain.Window{From: base.Truncate(24 * time.Hour), To: base.Truncate(24 * time.Hour).Add(24 * time.Hour)}, wantIDs: []string{"c", "b"}, wantTotal: "220"},
		{name: "empty", w: domain.Window{From: base.Add(72 * time.Hour)}, wantIDs: []string{}, wantTotal: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListOrders(ctx, tt.w)
			if err != nil {
				t.Fatalf("ListOrders() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ListOrders() len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("ListOrders()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}

			sum, err := s.Summarize(ctx, tt.w)
			if err != nil {
				t.Fatalf("Summarize() error = %v", err)
			}
			if sum.Count != len(tt.wantIDs) || !sum.Revenue.Equal(dec(tt.wantTotal)) {
				t.Errorf("Summarize() = %s/%d, want %s/%d", sum.Revenue, sum.Count, tt.wantTotal, len(tt.wantIDs))
			}
		})
	}
}

func testCheckout(t *testing.T, s domain.Store) {
	ctx := context.Background()
	mustAddTables(t, s, 3)
	lines := []domain.OrderLine{line("p1", "Latte", "20", 2), line("p2", "Toast", "35", 1)}
	if err := s.SavePendingOrder(ctx, 3, lines); err != nil {
		t.Fatalf("SavePendingOrder() error = %v", err)
	}

	o := archived("chk-1", 3, base, lines...)
	if err := s.Checkout(ctx, 3, o); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	tbl := mustTable(t, s, 3)
	if tbl.Status != domain.TableEmpty || len(tbl.PendingOrder) != 0 {
		t.Errorf("table after checkout = %+v, want Empty with no lines", tbl)
	}
	orders, err := s.ListOrders(ctx, domain.Window{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 1 || orders[0].TableNumber != 3 || !orders[0].Total.Equal(dec("75")) {
		t.Fatalf("ledger after checkout = %+v", orders)
	}
	if !sameLines(orders[0].Items, lines) {
		t.Errorf("archived items = %+v, want %+v", orders[0].Items, lines)
	}
}

func testCheckoutRequiresOccupied(t *testing.T, s domain.Store) {
	ctx := context.Background()
	mustAddTables(t, s, 1)

	tests := []struct {
		name    string
		number  int
		wantErr error
	}{
		{name: "empty table", number: 1, wantErr: domain.ErrConflict},
		{name: "absent table", number: 5, wantErr: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := archived("x-"+tt.name, tt.number, base, line("p1", "Tea", "15", 1))
			if err := s.Checkout(ctx, tt.number, o); !errors.Is(err, tt.wantErr) {
				t.Errorf("Checkout(%d) error = %v, want %v", tt.number, err, tt.wantErr)
			}
		})
	}
	sum, err := s.Summarize(ctx, domain.Window{})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if sum.Count != 0 {
		t.Errorf("refused checkouts wrote %d orders", sum.Count)
	}
}

func testCheckoutReplay(t *testing.T, s domain.Store) {
	ctx := context.Background()
	mustAddTables(t, s, 1)
	lines := []domain.OrderLine{line("p1", "Tea", "15", 1)}
	o := archived("replayed", 1, base, lines...)

	for i := 0; i < 2; i++ {
		if err := s.SavePendingOrder(ctx, 1, lines); err != nil {
			t.Fatalf("SavePendingOrder() error = %v", err)
		}
		if err := s.Checkout(ctx, 1, o); err != nil {
			t.Fatalf("Checkout() #%d error = %v", i, err)
		}
	}
	sum, err := s.Summarize(ctx, domain.Window{})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if sum.Count != 1 || !sum.Revenue.Equal(dec("15")) {
		t.Errorf("Summarize() after replay = %s/%d, want 15/1", sum.Revenue, sum.Count)
	}
}

func testSnapshotSurvivesCatalogEdit(t *testing.T, s domain.Store) {
	ctx := context.Background()
	mustAddTables(t, s, 1)
	p, err := s.AddProduct(ctx, domain.Product{Name: "Kunefe", Price: dec("55"), Category: "Desserts"})
	if err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
	lines := []domain.OrderLine{{Product: p.Snapshot(), Quantity: 2, LineTotal: dec("110")}}
	if err := s.SavePendingOrder(ctx, 1, lines); err != nil {
		t.Fatalf("SavePendingOrder() error = %v", err)
	}

	p.Price = dec("60")
	if err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	if err := s.Checkout(ctx, 1, archived("snap", 1, base, lines...)); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}

	orders, err := s.ListOrders(ctx, domain.Window{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("ListOrders() len = %d, want 1", len(orders))
	}
	item := orders[0].Items[0]
	if !item.Product.Price.Equal(dec("55")) || !orders[0].Total.Equal(dec("110")) {
		t.Errorf("archived snapshot = %+v total %s, want price 55 total 110", item.Product, orders[0].Total)
	}
}
