package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/usecase"
)

var testNow = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	router http.Handler
	coffee domain.Product
	cake   domain.Product
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.NewStore()
	for i := 0; i < 3; i++ {
		if _, err := st.AddTable(ctx); err != nil {
			t.Fatal(err)
		}
	}
	coffee, err := st.AddProduct(ctx, domain.Product{Name: "Coffee", Price: decimal.RequireFromString("45"), Category: "Drinks"})
	if err != nil {
		t.Fatal(err)
	}
	cake, err := st.AddProduct(ctx, domain.Product{Name: "Cake", Price: decimal.RequireFromString("120.50"), Category: "Desserts"})
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Options{
		Store:    st,
		Now:      func() time.Time { return testNow },
		Location: time.UTC,
	})
	return &fixture{store: st, router: srv.Router, coffee: coffee, cake: cake}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) saveOrder(t *testing.T, table int, body string) {
	t.Helper()
	if w := f.do(http.MethodPut, fmt.Sprintf("/api/tables/%d/order", table), body); w.Code != http.StatusOK {
		t.Fatalf("save order: %d %s", w.Code, w.Body.String())
	}
}

func TestTableRoutes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{name: "list", method: http.MethodGet, path: "/api/tables", wantCode: http.StatusOK},
		{name: "get existing", method: http.MethodGet, path: "/api/tables/2", wantCode: http.StatusOK},
		{name: "get missing", method: http.MethodGet, path: "/api/tables/99", wantCode: http.StatusNotFound},
		{name: "non-numeric", method: http.MethodGet, path: "/api/tables/abc", wantCode: http.StatusNotFound},
		{name: "add", method: http.MethodPost, path: "/api/tables", wantCode: http.StatusCreated},
		{name: "delete empty", method: http.MethodDelete, path: "/api/tables/2", wantCode: http.StatusNoContent},
		{name: "delete missing", method: http.MethodDelete, path: "/api/tables/42", wantCode: http.StatusNotFound},
		{name: "remove last", method: http.MethodDelete, path: "/api/tables/last", wantCode: http.StatusOK},
		{name: "checkout empty table", method: http.MethodPost, path: "/api/tables/1/checkout", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(tt.method, tt.path, "")
			if w.Code != tt.wantCode {
				t.Errorf("%s %s = %v, want %v (%s)", tt.method, tt.path, w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestDeleteOccupiedTableConflict(t *testing.T) {
	f := newFixture(t)
	f.saveOrder(t, 1, fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":1}]}`, f.coffee.ID))

	if w := f.do(http.MethodDelete, "/api/tables/1", ""); w.Code != http.StatusConflict {
		t.Fatalf("delete occupied = %d, want %d", w.Code, http.StatusConflict)
	}
	// стол 3 последний и свободен
	if w := f.do(http.MethodDelete, "/api/tables/last", ""); w.Code != http.StatusOK {
		t.Fatalf("remove last = %d", w.Code)
	}
}

func TestSaveOrder(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "quantity at limit",
			body:     fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":%d}]}`, f.cake.ID, MaxLineQuantity),
			wantCode: http.StatusOK,
		},
		{
			name:     "valid",
			body:     fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":2},{"product_id":%q,"quantity":1}]}`, f.coffee.ID, f.cake.ID),
			wantCode: http.StatusOK,
		},
		{
			name:     "zero quantity",
			body:     fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":0}]}`, f.coffee.ID),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "quantity over limit",
			body:     fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":20000000}]}`, f.coffee.ID),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown product",
			body:     `{"items":[{"product_id":"nope","quantity":1}]}`,
			wantCode: http.StatusNotFound,
		},
		{name: "empty order", body: `{"items":[]}`, wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{"items":`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPut, "/api/tables/2/order", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("save order = %v, want %v (%s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	w := f.do(http.MethodGet, "/api/tables/2", "")
	var got struct {
		Status string             `json:"status"`
		Total  decimal.Decimal    `json:"total"`
		Lines  []domain.OrderLine `json:"current_order"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != string(domain.TableOccupied) {
		t.Errorf("status = %q, want Occupied", got.Status)
	}
	if !got.Total.Equal(decimal.RequireFromString("210.50")) {
		t.Errorf("total = %s, want 210.50", got.Total)
	}
	if len(got.Lines) != 2 || got.Lines[0].Quantity != 2 {
		t.Errorf("lines = %+v", got.Lines)
	}
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantTotal string
	}{
		{name: "session total", body: "", wantCode: http.StatusCreated, wantTotal: "90"},
		{name: "explicit total", body: `{"total":"80.00"}`, wantCode: http.StatusCreated, wantTotal: "80"},
		{name: "null total", body: `{"total":null}`, wantCode: http.StatusCreated, wantTotal: "90"},
		{name: "negative total", body: `{"total":"-1"}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.saveOrder(t, 1, fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":2}]}`, f.coffee.ID))

			w := f.do(http.MethodPost, "/api/tables/1/checkout", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("checkout = %v, want %v (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusCreated {
				return
			}
			var o domain.ArchivedOrder
			if err := json.NewDecoder(w.Body).Decode(&o); err != nil {
				t.Fatal(err)
			}
			if !o.Total.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("total = %s, want %s", o.Total, tt.wantTotal)
			}
			if !o.CompletedAt.Equal(testNow) || o.TableNumber != 1 {
				t.Errorf("archived = %+v", o)
			}

			tbl, _, _ := f.store.GetTable(context.Background(), 1)
			if tbl.Status != domain.TableEmpty || len(tbl.PendingOrder) != 0 {
				t.Errorf("table after checkout = %+v", tbl)
			}
		})
	}
}

func TestProductRoutes(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{name: "list", method: http.MethodGet, path: "/api/products", wantCode: http.StatusOK},
		{name: "menu", method: http.MethodGet, path: "/api/menu", wantCode: http.StatusOK},
		{name: "categories", method: http.MethodGet, path: "/api/products/categories", wantCode: http.StatusOK},
		{name: "add", method: http.MethodPost, path: "/api/products", body: `{"name":"Tea","price":"30","category":"Drinks"}`, wantCode: http.StatusCreated},
		{name: "add without name", method: http.MethodPost, path: "/api/products", body: `{"name":" ","price":"30"}`, wantCode: http.StatusBadRequest},
		{name: "add negative price", method: http.MethodPost, path: "/api/products", body: `{"name":"Tea","price":"-3"}`, wantCode: http.StatusBadRequest},
		{name: "update", method: http.MethodPut, path: "/api/products/" + f.cake.ID, body: `{"name":"Cheesecake","price":"130","category":"Desserts"}`, wantCode: http.StatusOK},
		{name: "update missing", method: http.MethodPut, path: "/api/products/nope", body: `{"name":"X","price":"1"}`, wantCode: http.StatusNotFound},
		{name: "delete", method: http.MethodDelete, path: "/api/products/" + f.coffee.ID, wantCode: http.StatusNoContent},
		{name: "delete missing", method: http.MethodDelete, path: "/api/products/nope", wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("%s %s = %v, want %v (%s)", tt.method, tt.path, w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestMenuGroupsByCategory(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/menu", "")
	var menu map[string][]domain.Product
	if err := json.NewDecoder(w.Body).Decode(&menu); err != nil {
		t.Fatal(err)
	}
	if len(menu["Drinks"]) != 1 || menu["Drinks"][0].Name != "Coffee" {
		t.Errorf("drinks = %+v", menu["Drinks"])
	}
	if len(menu["Desserts"]) != 1 {
		t.Errorf("desserts = %+v", menu["Desserts"])
	}
}

func TestOrderHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, ts := range []time.Time{
		testNow.Add(-48 * time.Hour),
		testNow.Add(-time.Hour),
	} {
		err := f.store.Append(ctx, domain.ArchivedOrder{
			ID:          fmt.Sprintf("o-%d", i),
			TableNumber: 1,
			Total:       decimal.NewFromInt(100),
			CompletedAt: ts,
			Status:      domain.OrderCompleted,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantLen  int
	}{
		{name: "all", query: "", wantCode: http.StatusOK, wantLen: 2},
		{name: "from", query: "?from=2025-03-14T00:00:00Z", wantCode: http.StatusOK, wantLen: 1},
		{name: "to exclusive", query: "?to=2025-03-14T17:30:00Z", wantCode: http.StatusOK, wantLen: 1},
		{name: "bad from", query: "?from=yesterday", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, "/api/orders"+tt.query, "")
			if w.Code != tt.wantCode {
				t.Fatalf("history = %v, want %v (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got []usecase.HistoryEntry
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.saveOrder(t, 1, fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":1}]}`, f.cake.ID))
	if w := f.do(http.MethodPost, "/api/tables/1/checkout", ""); w.Code != http.StatusCreated {
		t.Fatalf("checkout = %d", w.Code)
	}

	w := f.do(http.MethodGet, "/api/reports/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d", w.Code)
	}
	var rep usecase.Report
	if err := json.NewDecoder(w.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	want := decimal.RequireFromString("120.50")
	if !rep.TotalRevenue.Equal(want) || !rep.TodayRevenue.Equal(want) || rep.OrderCount != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func BenchmarkGetTable(b *testing.B) {
	f := newFixture(b)
	for i := 0; i < 97; i++ {
		if _, err := f.store.AddTable(context.Background()); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/tables/%d", i%100+1), nil)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			i++
		}
	})
}
