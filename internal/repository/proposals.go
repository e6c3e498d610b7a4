package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkrivosheev/kp-builder/internal/models"
)

var ErrProposalNotFound = errors.New("proposal not found")

// ProposalRepository defines the interface of the proposal persistence
// service. Create and Update are the only writes the builder performs.
type ProposalRepository interface {
	Create(ctx context.Context, payload models.ProposalPayload) (*models.Proposal, error)
	Update(ctx context.Context, id int64, payload models.ProposalPayload) (*models.Proposal, error)
	GetByID(ctx context.Context, id int64) (*models.Proposal, error)
	GetAll(ctx context.Context) ([]models.Proposal, error)
}

// InMemoryProposalRepository implements ProposalRepository in memory.
type InMemoryProposalRepository struct {
	mu        sync.RWMutex
	proposals map[int64]models.Proposal
	nextID    int64
}

// NewInMemoryProposalRepository creates an empty proposal repository.
func NewInMemoryProposalRepository() *InMemoryProposalRepository {
	return &InMemoryProposalRepository{
		proposals: make(map[int64]models.Proposal),
		nextID:    1,
	}
}

// Create persists a new proposal and assigns its id and number.
func (r *InMemoryProposalRepository) Create(ctx context.Context, payload models.ProposalPayload) (*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p := models.Proposal{
		ID:              r.nextID,
		Number:          uuid.New().String(),
		CreatedAt:       now,
		UpdatedAt:       now,
		ProposalPayload: payload,
	}
	r.nextID++
	r.proposals[p.ID] = p
	return &p, nil
}

// Update replaces the payload of an existing proposal.
func (r *InMemoryProposalRepository) Update(ctx context.Context, id int64, payload models.ProposalPayload) (*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	p.ProposalPayload = payload
	p.UpdatedAt = time.Now().UTC()
	r.proposals[id] = p
	return &p, nil
}

// GetByID returns a proposal by id.
func (r *InMemoryProposalRepository) GetByID(ctx context.Context, id int64) (*models.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	return &p, nil
}

// GetAll returns every stored proposal.
func (r *InMemoryProposalRepository) GetAll(ctx context.Context) ([]models.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Proposal, 0, len(r.proposals))
	for _, p := range r.proposals {
		out = append(out, p)
	}
	return out, nil
}
