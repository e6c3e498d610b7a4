package repository

import (
	"context"
	"errors"

	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/units"
)

var (
	ErrDishNotFound = errors.New("dish not found")
)

// CatalogRepository defines the interface for dish catalog access.
// The catalog is read-only reference data fetched once per builder session.
type CatalogRepository interface {
	GetAll(ctx context.Context) ([]models.CatalogDish, error)
	GetByID(ctx context.Context, id int64) (*models.CatalogDish, error)
}

// InMemoryCatalogRepository implements CatalogRepository with seed data.
type InMemoryCatalogRepository struct {
	dishes map[int64]models.CatalogDish
	order  []int64
}

// NewInMemoryCatalogRepository creates a catalog repository with seed data.
func NewInMemoryCatalogRepository() *InMemoryCatalogRepository {
	seed := []models.CatalogDish{
		{ID: 1, Name: "Канапе с лососем", Measure: "35", Unit: units.Gram, Price: 190, Category: "Закуски", Subcategory: "Канапе"},
		{ID: 2, Name: "Брускетта с томатами", Measure: "45", Unit: units.Gram, Price: 150, Category: "Закуски", Subcategory: "Брускетты"},
		{ID: 3, Name: "Цезарь с курицей", Measure: "180", Unit: units.Gram, Price: 320, Category: "Салаты"},
		{ID: 4, Name: "Греческий салат", Measure: "160", Unit: units.Gram, Price: 280, Category: "Салаты"},
		{ID: 5, Name: "Стейк из индейки", Measure: "150/75", Unit: units.Gram, Price: 540, Category: "Горячие блюда"},
		{ID: 6, Name: "Судак с овощами", Measure: "140/60", Unit: units.Gram, Price: 610, Category: "Горячие блюда"},
		{ID: 7, Name: "Плов с бараниной", Measure: "250", Unit: units.Gram, Price: 450, Category: "Горячие блюда"},
		{ID: 8, Name: "Морс клюквенный", Measure: "0,2", Unit: units.Liter, Price: 120, Category: "Напитки"},
		{ID: 9, Name: "Лимонад цитрусовый", Measure: "200", Unit: units.Milliliter, Price: 140, Category: "Напитки"},
		{ID: 10, Name: "Чай в ассортименте", Measure: "200", Unit: units.Milliliter, Price: 90, Category: "Чай"},
		{ID: 11, Name: "Мини-десерты", Measure: "40", Unit: units.Gram, Price: 180, Category: "Десерты"},
		{ID: 12, Name: "Фруктовая тарелка", Measure: "1", Unit: units.Kilogram, Price: 950, Category: "Десерты"},
	}

	dishes := make(map[int64]models.CatalogDish, len(seed))
	order := make([]int64, 0, len(seed))
	for _, d := range seed {
		dishes[d.ID] = d
		order = append(order, d.ID)
	}
	return &InMemoryCatalogRepository{dishes: dishes, order: order}
}

// GetAll returns all active dishes in catalog order.
func (r *InMemoryCatalogRepository) GetAll(ctx context.Context) ([]models.CatalogDish, error) {
	out := make([]models.CatalogDish, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.dishes[id])
	}
	return out, nil
}

// GetByID returns a dish by its catalog id.
func (r *InMemoryCatalogRepository) GetByID(ctx context.Context, id int64) (*models.CatalogDish, error) {
	d, ok := r.dishes[id]
	if !ok {
		return nil, ErrDishNotFound
	}
	return &d, nil
}
