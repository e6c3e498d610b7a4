package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mkrivosheev/kp-builder/internal/draft"
	"github.com/mkrivosheev/kp-builder/internal/formats"
	"github.com/mkrivosheev/kp-builder/internal/ledger"
	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/pricing"
	"github.com/mkrivosheev/kp-builder/internal/repository"
)

// Manager owns the live builder sessions. Opening a draft restores its
// snapshot when one exists; benefits are fetched once per session to back
// the pricing engine.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Builder

	store    *draft.Store
	benefits repository.BenefitRepository
	clients  repository.ClientRepository
	catalog  repository.CatalogRepository
	log      *slog.Logger
}

// NewManager creates a session manager over the given collaborators.
func NewManager(store *draft.Store, benefits repository.BenefitRepository, clients repository.ClientRepository, catalog repository.CatalogRepository, log *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Builder),
		store:    store,
		benefits: benefits,
		clients:  clients,
		catalog:  catalog,
		log:      log,
	}
}

// Open returns the builder for a draft id, creating a fresh session or
// restoring a stored snapshot. An empty id starts a brand-new draft.
func (m *Manager) Open(ctx context.Context, id string) (*Builder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if b, ok := m.sessions[id]; ok {
		return b, nil
	}

	engine, err := m.newEngine(ctx)
	if err != nil {
		return nil, err
	}

	d := NewDraft(id)
	if found, err := m.store.Restore(id, d); err != nil {
		return nil, err
	} else if found {
		d.normalize(id)
		m.log.Info("restored draft from snapshot", "draft_id", id)
	}

	b := &Builder{
		draft:   d,
		store:   m.store,
		engine:  engine,
		clients: m.clients,
		log:     m.log,
	}
	m.sessions[id] = b
	return b, nil
}

// OpenForProposal starts an editing session hydrated from an existing
// proposal.
func (m *Manager) OpenForProposal(ctx context.Context, proposals repository.ProposalRepository, proposalID int64) (*Builder, error) {
	proposal, err := proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	engine, err := m.newEngine(ctx)
	if err != nil {
		return nil, err
	}

	d, err := m.hydrate(ctx, proposal)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		draft:   d,
		store:   m.store,
		engine:  engine,
		clients: m.clients,
		log:     m.log,
	}
	m.sessions[d.ID] = b
	b.scheduleSave()
	return b, nil
}

// Get returns an already open session.
func (m *Manager) Get(id string) (*Builder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[id]
	return b, ok
}

// Close drops the in-memory session without touching the stored snapshot.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Discard removes both the session and the stored snapshot.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	b, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		return b.Discard()
	}
	return m.store.Clear(id)
}

func (m *Manager) newEngine(ctx context.Context) (*pricing.Engine, error) {
	benefits, err := m.benefits.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch benefits: %w", err)
	}
	return pricing.NewEngine(pricing.NewResolver(benefits)), nil
}

// hydrate rebuilds a draft aggregate from a persisted proposal payload.
// Catalog references are resolved against the catalog service; references
// to dishes that have since disappeared are skipped rather than failing.
func (m *Manager) hydrate(ctx context.Context, p *models.Proposal) (*Draft, error) {
	d := NewDraft(uuid.New().String())
	d.ProposalID = p.ID

	d.ClientID = p.ClientID
	d.ExistingClient = p.ClientID != 0
	d.ClientName = p.ClientName
	d.ClientEmail = p.ClientEmail
	d.ClientPhone = p.ClientPhone

	d.EventDate = p.EventDate
	d.EventTime = p.EventTime
	d.Location = p.Location
	d.Coordinator = p.Coordinator
	d.Guests = p.Guests
	d.Group = formats.ServiceGroup(p.ServiceGroup)
	if !d.Group.Valid() {
		d.Group = formats.GroupNone
	}
	d.TransportCost = p.TransportCost

	for _, item := range p.Items {
		dish, err := m.catalog.GetByID(ctx, item.ItemID)
		if err != nil {
			m.log.Warn("skipping unknown catalog dish during hydration",
				"proposal_id", p.ID, "item_id", item.ItemID)
			continue
		}
		d.Ledger.SelectCatalogDish(*dish, 1)
		_ = d.Ledger.SetQuantity(ledger.DishKey{Kind: ledger.KindCatalog, ID: dish.ID}, item.Quantity)
	}
	for _, c := range p.CustomItems {
		d.Ledger.AddCustomDish(ledger.Dish{
			Name:        c.Name,
			Description: c.Description,
			Measure:     c.Measure,
			Unit:        c.Unit,
			Price:       c.Price,
		}, c.Quantity)
	}
	for _, li := range p.Equipment {
		d.Ledger.AddEquipment(ledger.LineItem{
			Name: li.Name, Quantity: li.Quantity, Price: li.Price, Subcategory: li.Subcategory,
		})
	}
	for _, li := range p.Services {
		d.Ledger.AddService(ledger.LineItem{Name: li.Name, Quantity: li.Quantity, Price: li.Price})
	}
	d.Ledger.SetLossCharge(p.LossCharge)

	for _, f := range p.Formats {
		created := d.Registry.Create(f.Name)
		_ = d.Registry.SetTimeRange(created.ID, f.TimeRange)
		_ = d.Registry.SetGuests(created.ID, f.Guests)
		created.Group = d.Group
	}

	d.Discount = pricing.DiscountSelection{
		MenuBenefitID:       p.MenuBenefitID,
		EquipmentBenefitID:  p.EquipmentBenefitID,
		ServiceBenefitID:    p.ServiceBenefitID,
		SubcategoryBenefits: p.SubcategoryBenefits,
		LegacyBenefitID:     p.LegacyBenefitID,
		LegacyOnMenu:        p.LegacyOnMenu,
		LegacyOnEquipment:   p.LegacyOnEquipment,
		LegacyOnService:     p.LegacyOnService,
	}
	d.Cashback = pricing.CashbackSelection{
		BenefitID: p.CashbackBenefitID,
		RedeemNow: p.UseCashback,
	}

	d.TemplateID = p.TemplateID
	d.SendEmail = p.SendEmail
	d.SendTelegram = p.SendTelegram
	d.EmailMessage = p.EmailMessage
	d.TelegramMessage = p.TelegramMessage

	return d, nil
}
