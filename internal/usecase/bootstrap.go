package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

// StarterTables — число столов в пустой установке.
const StarterTables = 10

func starter(name string, price int64, category string) domain.Product {
	return domain.Product{Name: name, Price: decimal.NewFromInt(price), Category: category}
}

// StarterCatalog — меню новой установки.
var StarterCatalog = []domain.Product{
	starter("Turkish Coffee", 25, "Beverages"),
	starter("Espresso", 20, "Beverages"),
	starter("Americano", 22, "Beverages"),
	starter("Cappuccino", 28, "Beverages"),
	starter("Latte", 30, "Beverages"),
	starter("Tea", 15, "Beverages"),
	starter("Fresh Orange Juice", 35, "Beverages"),
	starter("Ayran", 12, "Beverages"),
	starter("Cola", 18, "Beverages"),
	starter("Fanta", 18, "Beverages"),

	starter("Breakfast Plate", 85, "Breakfast"),
	starter("Menemen", 65, "Breakfast"),
	starter("Omelette", 55, "Breakfast"),
	starter("Eggs with Sucuk", 60, "Breakfast"),
	starter("Toast", 35, "Breakfast"),

	starter("Hamburger", 120, "Main Dishes"),
	starter("Cheeseburger", 130, "Main Dishes"),
	starter("Pizza Margherita", 90, "Main Dishes"),
	starter("Pizza Pepperoni", 110, "Main Dishes"),
	starter("Doner", 80, "Main Dishes"),
	starter("Lahmacun", 45, "Main Dishes"),
	starter("Kofte", 95, "Main Dishes"),
	starter("Chicken Shish", 100, "Main Dishes"),
	starter("Grilled Fish", 150, "Main Dishes"),

	starter("Baklava", 50, "Desserts"),
	starter("Kunefe", 55, "Desserts"),
	starter("Rice Pudding", 30, "Desserts"),
	starter("Ice Cream", 35, "Desserts"),
	starter("Cheesecake", 45, "Desserts"),
	starter("Tiramisu", 50, "Desserts"),
}

// Bootstrap — заполнить пустую установку столами и стартовым меню.
// Если есть хотя бы один стол или продукт, ничего не делает.
type Bootstrap struct {
	Tables  domain.TableStore
	Catalog domain.CatalogStore
	Log     *slog.Logger
}

// Execute возвращает true, если данные были добавлены.
func (uc Bootstrap) Execute(ctx context.Context) (bool, error) {
	log := logger.OrNop(uc.Log)
	ts, err := uc.Tables.ListTables(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: list tables: %w", err)
	}
	ps, err := uc.Catalog.ListProducts(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: list products: %w", err)
	}
	if len(ts) > 0 || len(ps) > 0 {
		log.Debug("seed skipped", slog.String("action", "seed"),
			slog.Int("tables", len(ts)), slog.Int("products", len(ps)))
		return false, nil
	}

	for i := 0; i < StarterTables; i++ {
		if _, err := uc.Tables.AddTable(ctx); err != nil {
			return false, fmt.Errorf("seed tables: %w", err)
		}
	}
	for _, p := range StarterCatalog {
		if _, err := uc.Catalog.AddProduct(ctx, p); err != nil {
			return false, fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}
	log.Info("store seeded", slog.String("action", "seed"),
		slog.Int("tables", StarterTables), slog.Int("products", len(StarterCatalog)))
	return true, nil
}
