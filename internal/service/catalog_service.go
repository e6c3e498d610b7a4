package service

import (
	"context"

	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/repository"
)

// CatalogService handles business logic for dish catalog reads.
type CatalogService struct {
	repo repository.CatalogRepository
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo repository.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// ListDishes returns all active dishes.
func (s *CatalogService) ListDishes(ctx context.Context) ([]models.CatalogDish, error) {
	return s.repo.GetAll(ctx)
}

// GetDish returns a dish by ID.
func (s *CatalogService) GetDish(ctx context.Context, id int64) (*models.CatalogDish, error) {
	return s.repo.GetByID(ctx, id)
}
