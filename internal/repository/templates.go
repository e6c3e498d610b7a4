package repository

import (
	"context"
	"errors"

	"github.com/mkrivosheev/kp-builder/internal/models"
)

var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepository defines the interface for output template data.
type TemplateRepository interface {
	GetAll(ctx context.Context) ([]models.Template, error)
	GetByID(ctx context.Context, id int64) (*models.Template, error)
}

// InMemoryTemplateRepository implements TemplateRepository with seed data.
type InMemoryTemplateRepository struct {
	templates map[int64]models.Template
	order     []int64
}

// NewInMemoryTemplateRepository creates a template repository with seed data.
func NewInMemoryTemplateRepository() *InMemoryTemplateRepository {
	seed := []models.Template{
		{ID: 1, Name: "Стандартный", IsDefault: true},
		{ID: 2, Name: "Подробный со сметой"},
		{ID: 3, Name: "Короткий для мессенджеров"},
	}
	templates := make(map[int64]models.Template, len(seed))
	order := make([]int64, 0, len(seed))
	for _, t := range seed {
		templates[t.ID] = t
		order = append(order, t.ID)
	}
	return &InMemoryTemplateRepository{templates: templates, order: order}
}

// GetAll returns all templates.
func (r *InMemoryTemplateRepository) GetAll(ctx context.Context) ([]models.Template, error) {
	out := make([]models.Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.templates[id])
	}
	return out, nil
}

// GetByID returns a template by id.
func (r *InMemoryTemplateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}
