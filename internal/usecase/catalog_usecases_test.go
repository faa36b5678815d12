package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/example/restaurant-pos/internal/adapter/memory"
	"github.com/example/restaurant-pos/internal/domain"
)

func TestAddProductValidation(t *testing.T) {
	tests := []struct {
		name         string
		in           domain.Product
		wantErr      error
		wantCategory string
	}{
		{name: "ok", in: domain.Product{Name: "Tea", Price: dec("15"), Category: "Beverages"}, wantCategory: "Beverages"},
		{name: "free item", in: domain.Product{Name: "Water", Price: dec("0"), Category: "Beverages"}, wantCategory: "Beverages"},
		{name: "blank category", in: domain.Product{Name: "Simit", Price: dec("10"), Category: "  "}, wantCategory: domain.DefaultCategory},
		{name: "negative price", in: domain.Product{Name: "Tea", Price: dec("-1")}, wantErr: domain.ErrValidation},
		{name: "blank name", in: domain.Product{Name: " ", Price: dec("1")}, wantErr: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			got, err := AddProduct{Catalog: store}.Execute(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddProduct.Execute() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if ps, _ := store.ListProducts(context.Background()); len(ps) != 0 {
					t.Errorf("invalid product stored: %+v", ps)
				}
				return
			}
			if got.ID == "" || got.Category != tt.wantCategory {
				t.Errorf("AddProduct.Execute() = %+v, want id and category %q", got, tt.wantCategory)
			}
		})
	}
}

func TestUpdateProductKeepsID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p := mustProduct(t, store, "Menemen", "65", "Breakfast")

	p.Price = dec("70")
	p.Category = ""
	if err := (UpdateProduct{Catalog: store}).Execute(ctx, p); err != nil {
		t.Fatalf("UpdateProduct.Execute() error = %v", err)
	}
	got, ok, _ := store.GetProduct(ctx, p.ID)
	if !ok || !got.Price.Equal(dec("70")) || got.Category != domain.DefaultCategory {
		t.Errorf("after update = %+v", got)
	}
	if ps, _ := store.ListProducts(ctx); len(ps) != 1 {
		t.Errorf("update created a new product: %d products", len(ps))
	}

	tests := []struct {
		name    string
		in      domain.Product
		wantErr error
	}{
		{name: "missing id", in: domain.Product{Name: "X", Price: dec("1")}, wantErr: domain.ErrValidation},
		{name: "unknown id", in: domain.Product{ID: "nope", Name: "X", Price: dec("1")}, wantErr: domain.ErrNotFound},
		{name: "negative price", in: domain.Product{ID: p.ID, Name: "X", Price: dec("-5")}, wantErr: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := (UpdateProduct{Catalog: store}).Execute(ctx, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateProduct.Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeleteProductMissingIsNoop(t *testing.T) {
	if err := (DeleteProduct{Catalog: memory.NewStore()}).Execute(context.Background(), "ghost"); err != nil {
		t.Errorf("DeleteProduct.Execute(ghost) error = %v", err)
	}
}

func TestMenuAndCategories(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	mustProduct(t, store, "Tea", "15", "Beverages")
	mustProduct(t, store, "Baklava", "50", "Desserts")
	mustProduct(t, store, "Ayran", "12", "Beverages")
	// хранилище допускает пустую категорию, если продукт записан в обход use case
	if _, err := store.AddProduct(ctx, domain.Product{Name: "Mystery", Price: dec("1")}); err != nil {
		t.Fatal(err)
	}

	menu, err := Menu{Catalog: store}.Execute(ctx)
	if err != nil {
		t.Fatalf("Menu.Execute() error = %v", err)
	}
	bev := menu["Beverages"]
	if len(bev) != 2 || bev[0].Name != "Ayran" || bev[1].Name != "Tea" {
		t.Errorf("Beverages group = %+v, want Ayran, Tea", bev)
	}
	if len(menu[domain.DefaultCategory]) != 1 || len(menu["Desserts"]) != 1 {
		t.Errorf("menu groups = %v", menu)
	}

	cats, err := Categories{Catalog: store}.Execute(ctx)
	if err != nil {
		t.Fatalf("Categories.Execute() error = %v", err)
	}
	want := []string{"Beverages", "Desserts", "Other"}
	if len(cats) != len(want) {
		t.Fatalf("Categories.Execute() = %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("Categories.Execute() = %v, want %v", cats, want)
			break
		}
	}
}
