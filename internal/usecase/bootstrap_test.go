package usecase

import (
	"context"
	"testing"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/domain"
)

func TestBootstrapSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := Bootstrap{Tables: store, Catalog: store}

	seeded, err := uc.Execute(ctx)
	if err != nil || !seeded {
		t.Fatalf("Bootstrap.Execute() = %v, %v, want true", seeded, err)
	}
	ts, _ := store.ListTables(ctx)
	if len(ts) != 10 || ts[0].Number != 1 || ts[9].Number != 10 {
		t.Errorf("seeded tables = %d (first %d)", len(ts), ts[0].Number)
	}
	for _, tbl := range ts {
		if tbl.Status != domain.TableEmpty {
			t.Errorf("seeded table %d status = %s", tbl.Number, tbl.Status)
		}
	}

	ps, _ := store.ListProducts(ctx)
	if len(ps) != 30 {
		t.Fatalf("seeded products = %d, want 30", len(ps))
	}
	groups := GroupByCategory(ps)
	wantSizes := map[string]int{"Beverages": 10, "Breakfast": 5, "Main Dishes": 9, "Desserts": 6}
	for c, n := range wantSizes {
		if len(groups[c]) != n {
			t.Errorf("category %s has %d products, want %d", c, len(groups[c]), n)
		}
	}

	again, err := uc.Execute(ctx)
	if err != nil || again {
		t.Errorf("second Bootstrap.Execute() = %v, %v, want false", again, err)
	}
	if ps, _ := store.ListProducts(ctx); len(ps) != 30 {
		t.Errorf("second run changed catalog size to %d", len(ps))
	}
}

func TestBootstrapSkipsPartialStore(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *memory.Store)
	}{
		{name: "has table", prepare: func(s *memory.Store) { _, _ = s.AddTable(context.Background()) }},
		{name: "has product", prepare: func(s *memory.Store) {
			_, _ = s.AddProduct(context.Background(), domain.Product{Name: "Simit", Price: dec("10")})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			tt.prepare(store)
			seeded, err := Bootstrap{Tables: store, Catalog: store}.Execute(context.Background())
			if err != nil || seeded {
				t.Fatalf("Bootstrap.Execute() = %v, %v, want false", seeded, err)
			}
			ts, _ := store.ListTables(context.Background())
			ps, _ := store.ListProducts(context.Background())
			if len(ts)+len(ps) != 1 {
				t.Errorf("partial store grew to %d tables, %d products", len(ts), len(ps))
			}
		})
	}
}
