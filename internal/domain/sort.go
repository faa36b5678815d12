package domain

import "sort"

// SortProducts упорядочивает меню по имени, при равных именах по id.
func SortProducts(ps []Product) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

// SortNewestFirst упорядочивает журнал от новых заказов к старым.
func SortNewestFirst(os []ArchivedOrder) {
	sort.SliceStable(os, func(i, j int) bool {
		if !os[i].CompletedAt.Equal(os[j].CompletedAt) {
			return os[i].CompletedAt.After(os[j].CompletedAt)
		}
		return os[i].ID > os[j].ID
	})
}

// ValidateArchived checks the fields every ledger backend relies on.
func ValidateArchived(o ArchivedOrder) error {
	if o.ID == "" {
		return &ValidationError{Field: "id", Message: "archived order id is required"}
	}
	if o.CompletedAt.IsZero() {
		return &ValidationError{Field: "date", Message: "completion time is required"}
	}
	if o.Status != OrderCompleted {
		return &ValidationError{Field: "status", Message: "only completed orders are archived"}
	}
	return nil
}
