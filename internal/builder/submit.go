package builder

import (
	"context"

	"github.com/mkrivosheev/kp-builder/internal/ledger"
	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/pricing"
	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/steps"
)

// Payload flattens the draft into the persistence-service shape. Catalog
// dishes become {item_id, quantity} references reconciled across formats
// and the unscoped selection; custom dishes travel inline and are never
// sent as catalog references.
func (b *Builder) Payload() models.ProposalPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.payloadLocked(b.totalsLocked())
}

func (b *Builder) payloadLocked(totals pricing.Totals) models.ProposalPayload {
	d := b.draft

	unscoped := make([]ledger.DishKey, 0, len(d.Ledger.Dishes))
	for _, s := range d.Ledger.Dishes {
		unscoped = append(unscoped, s.Dish.Key())
	}
	keys := d.Registry.Reconcile(unscoped)

	items := make([]models.ProposalItem, 0, len(keys))
	customs := make([]models.ProposalCustomItem, 0)
	for _, key := range keys {
		s := d.Ledger.Find(key)
		if s == nil {
			continue
		}
		switch key.Kind {
		case ledger.KindCatalog:
			items = append(items, models.ProposalItem{ItemID: key.ID, Quantity: s.Quantity})
		case ledger.KindCustom:
			customs = append(customs, models.ProposalCustomItem{
				Name:        s.Dish.Name,
				Description: s.Dish.Description,
				Measure:     s.Measure(),
				Unit:        s.Dish.Unit,
				Price:       s.UnitPrice(),
				Quantity:    s.Quantity,
			})
		}
	}

	equipment := make([]models.ProposalLineItem, 0, len(d.Ledger.Equipment))
	for _, li := range d.Ledger.Equipment {
		equipment = append(equipment, models.ProposalLineItem{
			Name: li.Name, Quantity: li.Quantity, Price: li.Price, Subcategory: li.Subcategory,
		})
	}
	services := make([]models.ProposalLineItem, 0, len(d.Ledger.Services))
	for _, li := range d.Ledger.Services {
		services = append(services, models.ProposalLineItem{
			Name: li.Name, Quantity: li.Quantity, Price: li.Price,
		})
	}

	fmts := make([]models.ProposalFormat, 0, len(d.Registry.Formats))
	for _, f := range d.Registry.Formats {
		fmts = append(fmts, models.ProposalFormat{
			Name:       f.Name,
			TimeRange:  f.TimeRange,
			Guests:     f.Guests,
			OrderIndex: f.ID,
		})
	}

	// The persisted guest count falls back to the format sum, matching the
	// weight/volume display context.
	guests := d.Guests
	if guests <= 0 {
		guests = d.Registry.GuestSum()
	}

	return models.ProposalPayload{
		ClientID:    d.ClientID,
		ClientName:  d.ClientName,
		ClientEmail: d.ClientEmail,
		ClientPhone: d.ClientPhone,

		EventDate:    d.EventDate,
		EventTime:    d.EventTime,
		Location:     d.Location,
		Coordinator:  d.Coordinator,
		ServiceGroup: string(d.Group),
		Guests:       guests,

		Items:       items,
		CustomItems: customs,
		Equipment:   equipment,
		Services:    services,
		Formats:     fmts,

		LossCharge:    d.Ledger.LossCharge,
		TransportCost: d.TransportCost,

		MenuBenefitID:       d.Discount.MenuBenefitID,
		EquipmentBenefitID:  d.Discount.EquipmentBenefitID,
		ServiceBenefitID:    d.Discount.ServiceBenefitID,
		SubcategoryBenefits: d.Discount.SubcategoryBenefits,
		LegacyBenefitID:     d.Discount.LegacyBenefitID,
		LegacyOnMenu:        d.Discount.LegacyOnMenu,
		LegacyOnEquipment:   d.Discount.LegacyOnEquipment,
		LegacyOnService:     d.Discount.LegacyOnService,
		CashbackBenefitID:   d.Cashback.BenefitID,
		UseCashback:         d.Cashback.RedeemNow,

		TemplateID:      d.TemplateID,
		SendEmail:       d.SendEmail,
		SendTelegram:    d.SendTelegram,
		EmailMessage:    d.EmailMessage,
		TelegramMessage: d.TelegramMessage,

		DishesTotal:    totals.DishesTotal,
		RegularTotal:   totals.RegularDishesTotal,
		EquipmentTotal: totals.EquipmentTotal,
		ServiceTotal:   totals.ServiceTotal,
		Discount:       totals.Discounts.Total,
		Cashback:       totals.CashbackEarned + totals.CashbackRedeemed,
		Total:          totals.Total,
		PerGuestPrice:  totals.PerGuestPrice,
		TotalWeight:    totals.TotalWeight,
		TotalVolume:    totals.TotalVolume,
	}
}

// Submit validates the final gates and hands the flattened payload to the
// proposal persistence service. The stored snapshot is cleared only after
// the round trip succeeds; any failure leaves both the draft and the store
// untouched.
func (b *Builder) Submit(ctx context.Context, proposals repository.ProposalRepository) (*models.Proposal, []steps.Violation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.draft.Machine.Current() != steps.TemplateAndSend {
		return nil, nil, ErrNotLastStep
	}

	violations := steps.SubmissionViolations(b.gateStateLocked())
	if err := pricing.ValidateExclusivity(b.draft.Discount, b.draft.Cashback); err != nil {
		violations = append(violations, steps.Violation{Field: "cashback", Message: err.Error()})
	}

	totals := b.totalsLocked()
	if b.draft.Cashback.RedeemNow {
		if b.draft.ClientID == 0 {
			// hydrated drafts can carry redemption without a client
			violations = append(violations, steps.Violation{Field: "cashback", Message: ErrClientRequired.Error()})
		} else {
			client, err := b.clients.GetByID(ctx, b.draft.ClientID)
			if err != nil {
				return nil, nil, err
			}
			if err := pricing.ValidateRedeem(totals.CashbackRedeemed, client.WalletBalance); err != nil {
				violations = append(violations, steps.Violation{Field: "cashback", Message: err.Error()})
			}
		}
	}
	if len(violations) > 0 {
		return nil, violations, nil
	}

	payload := b.payloadLocked(totals)

	var proposal *models.Proposal
	var err error
	if b.draft.ProposalID != 0 {
		proposal, err = proposals.Update(ctx, b.draft.ProposalID, payload)
	} else {
		proposal, err = proposals.Create(ctx, payload)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := b.store.Clear(b.draft.ID); err != nil {
		b.log.Warn("failed to clear submitted draft", "draft_id", b.draft.ID, "error", err)
	}
	return proposal, nil, nil
}

// Discard drops the draft and invalidates any pending save.
func (b *Builder) Discard() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Clear(b.draft.ID)
}
