package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
)

// normalizeProduct проверяет поля продукта и подставляет категорию по умолчанию.
func normalizeProduct(p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" {
		return p, &domain.ValidationError{Field: "name", Message: "product name is required"}
	}
	if p.Price.IsNegative() {
		return p, &domain.ValidationError{Field: "price", Message: "price must not be negative"}
	}
	p.Category = p.CategoryOrDefault()
	return p, nil
}

// ListProducts — меню, отсортированное по имени.
type ListProducts struct {
	Catalog domain.CatalogStore
}

func (uc ListProducts) Execute(ctx context.Context) ([]domain.Product, error) {
	return uc.Catalog.ListProducts(ctx)
}

// AddProduct — добавить позицию меню; идентификатор назначает хранилище.
type AddProduct struct {
	Catalog domain.CatalogStore
	Log     *slog.Logger
}

func (uc AddProduct) Execute(ctx context.Context, p domain.Product) (domain.Product, error) {
	p, err := normalizeProduct(p)
	if err != nil {
		return domain.Product{}, err
	}
	p, err = uc.Catalog.AddProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	logger.OrNop(uc.Log).Info("product added",
		slog.String("action", "product_add"),
		slog.String("product_id", p.ID),
		slog.String("name", p.Name))
	return p, nil
}

// UpdateProduct — изменить позицию меню, сохраняя её идентификатор.
// Уже сохранённые заказы хранят снимок и не меняются.
type UpdateProduct struct {
	Catalog domain.CatalogStore
	Log     *slog.Logger
}

func (uc UpdateProduct) Execute(ctx context.Context, p domain.Product) error {
	if p.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "product id is required"}
	}
	p, err := normalizeProduct(p)
	if err != nil {
		return err
	}
	if err := uc.Catalog.UpdateProduct(ctx, p); err != nil {
		return err
	}
	logger.OrNop(uc.Log).Info("product updated",
		slog.String("action", "product_update"),
		slog.String("product_id", p.ID))
	return nil
}

type DeleteProduct struct {
	Catalog domain.CatalogStore
	Log     *slog.Logger
}

func (uc DeleteProduct) Execute(ctx context.Context, id string) error {
	if err := uc.Catalog.DeleteProduct(ctx, id); err != nil {
		return err
	}
	logger.OrNop(uc.Log).Info("product deleted",
		slog.String("action", "product_delete"),
		slog.String("product_id", id))
	return nil
}

// GroupByCategory раскладывает меню по категориям, сохраняя порядок внутри группы.
func GroupByCategory(ps []domain.Product) map[string][]domain.Product {
	out := make(map[string][]domain.Product)
	for _, p := range ps {
		c := p.CategoryOrDefault()
		out[c] = append(out[c], p)
	}
	return out
}

// Menu — меню, сгруппированное по категориям.
type Menu struct {
	Catalog domain.CatalogStore
}

func (uc Menu) Execute(ctx context.Context) (map[string][]domain.Product, error) {
	ps, err := uc.Catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByCategory(ps), nil
}

// Categories — отсортированные имена категорий для выбора при редактировании;
// категория по умолчанию присутствует всегда.
type Categories struct {
	Catalog domain.CatalogStore
}

func (uc Categories) Execute(ctx context.Context) ([]string, error) {
	ps, err := uc.Catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{domain.DefaultCategory: true}
	out := []string{domain.DefaultCategory}
	for _, p := range ps {
		c := p.CategoryOrDefault()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}
