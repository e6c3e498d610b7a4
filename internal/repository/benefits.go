package repository

import (
	"context"

	"github.com/mkrivosheev/kp-builder/internal/models"
)

// BenefitRepository defines the interface for benefit reference data.
type BenefitRepository interface {
	GetActive(ctx context.Context) ([]models.Benefit, error)
}

// InMemoryBenefitRepository implements BenefitRepository with seed data.
type InMemoryBenefitRepository struct {
	benefits []models.Benefit
}

// NewInMemoryBenefitRepository creates a benefit repository with seed data.
func NewInMemoryBenefitRepository() *InMemoryBenefitRepository {
	return &InMemoryBenefitRepository{
		benefits: []models.Benefit{
			{ID: 1, Name: "Постоянный клиент 5%", Type: models.BenefitDiscount, Percent: 5, IsActive: true},
			{ID: 2, Name: "Корпоративная 10%", Type: models.BenefitDiscount, Percent: 10, IsActive: true},
			{ID: 3, Name: "Сезонная 15%", Type: models.BenefitDiscount, Percent: 15, IsActive: true},
			{ID: 4, Name: "Посуда −20%", Type: models.BenefitDiscount, Percent: 20, IsActive: true},
			{ID: 5, Name: "Кэшбэк 3%", Type: models.BenefitCashback, Percent: 3, IsActive: true},
			{ID: 6, Name: "Кэшбэк 5%", Type: models.BenefitCashback, Percent: 5, IsActive: true},
			{ID: 7, Name: "Архивная 25%", Type: models.BenefitDiscount, Percent: 25, IsActive: false},
		},
	}
}

// GetActive returns active benefits only; inactive profiles stay selectable
// in old proposals but resolve to zero.
func (r *InMemoryBenefitRepository) GetActive(ctx context.Context) ([]models.Benefit, error) {
	out := make([]models.Benefit, 0, len(r.benefits))
	for _, b := range r.benefits {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}
