package repository

import (
	"context"
	"errors"

	"github.com/mkrivosheev/kp-builder/internal/models"
)

var ErrClientNotFound = errors.New("client not found")

// ClientRepository defines the interface for client reference data.
type ClientRepository interface {
	GetAll(ctx context.Context) ([]models.Client, error)
	GetByID(ctx context.Context, id int64) (*models.Client, error)
}

// EventDetailsRepository supplies event metadata autofill for a client.
// Both the checklist and the questionnaire services implement it; the
// checklist is the richer source and wins when both have data.
type EventDetailsRepository interface {
	ForClient(ctx context.Context, clientID int64) (*models.EventDetails, error)
}

// InMemoryClientRepository implements ClientRepository with seed data.
type InMemoryClientRepository struct {
	clients map[int64]models.Client
	order   []int64
}

// NewInMemoryClientRepository creates a client repository with seed data.
func NewInMemoryClientRepository() *InMemoryClientRepository {
	seed := []models.Client{
		{ID: 1, Name: "ООО Ромашка", Email: "events@romashka.ru", Phone: "+7 900 111-22-33", WalletBalance: 12500, LastEventDate: "2026-05-14", LastEventLocation: "Офис на Тверской"},
		{ID: 2, Name: "Иванова Анна", Email: "anna.ivanova@example.com", Phone: "+7 921 555-44-11", WalletBalance: 800},
		{ID: 3, Name: "АО ТехноСфера", Email: "office@technosfera.ru", Phone: "+7 495 700-80-90", WalletBalance: 0},
	}

	clients := make(map[int64]models.Client, len(seed))
	order := make([]int64, 0, len(seed))
	for _, c := range seed {
		clients[c.ID] = c
		order = append(order, c.ID)
	}
	return &InMemoryClientRepository{clients: clients, order: order}
}

// GetAll returns all clients.
func (r *InMemoryClientRepository) GetAll(ctx context.Context) ([]models.Client, error) {
	out := make([]models.Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out, nil
}

// GetByID returns a client by id.
func (r *InMemoryClientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

// InMemoryEventDetailsRepository is a seedable EventDetailsRepository used
// for both the checklist and questionnaire sources.
type InMemoryEventDetailsRepository struct {
	byClient map[int64]models.EventDetails
}

// NewInMemoryEventDetailsRepository creates a details repository over the
// given entries.
func NewInMemoryEventDetailsRepository(entries []models.EventDetails) *InMemoryEventDetailsRepository {
	byClient := make(map[int64]models.EventDetails, len(entries))
	for _, e := range entries {
		byClient[e.ClientID] = e
	}
	return &InMemoryEventDetailsRepository{byClient: byClient}
}

// SeedChecklists returns the default checklist entries.
func SeedChecklists() []models.EventDetails {
	return []models.EventDetails{
		{ClientID: 1, EventDate: "2026-09-20", EventTime: "18:00", Location: "Лофт «Депо»", Coordinator: "Мария", Guests: 60},
	}
}

// SeedQuestionnaires returns the default legacy questionnaire entries.
func SeedQuestionnaires() []models.EventDetails {
	return []models.EventDetails{
		{ClientID: 1, EventDate: "2026-09-19", Location: "Офис на Тверской"},
		{ClientID: 2, EventDate: "2026-10-03", Guests: 25},
	}
}

// ForClient returns autofill details for a client, or nil when none exist.
func (r *InMemoryEventDetailsRepository) ForClient(ctx context.Context, clientID int64) (*models.EventDetails, error) {
	e, ok := r.byClient[clientID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}
