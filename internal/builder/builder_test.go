package builder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkrivosheev/kp-builder/internal/draft"
	"github.com/mkrivosheev/kp-builder/internal/formats"
	"github.com/mkrivosheev/kp-builder/internal/ledger"
	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/pricing"
	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/steps"
	"github.com/mkrivosheev/kp-builder/internal/units"
	"github.com/mkrivosheev/kp-builder/pkg/logger"
)

type fixture struct {
	manager   *Manager
	store     *draft.Store
	catalog   repository.CatalogRepository
	proposals repository.ProposalRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := draft.Open(filepath.Join(t.TempDir(), "drafts.db"), time.Hour, logger.New("error"))
	if err != nil {
		t.Fatalf("draft.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog := repository.NewInMemoryCatalogRepository()
	m := NewManager(
		store,
		repository.NewInMemoryBenefitRepository(),
		repository.NewInMemoryClientRepository(),
		catalog,
		logger.New("error"),
	)
	return &fixture{
		manager:   m,
		store:     store,
		catalog:   catalog,
		proposals: repository.NewInMemoryProposalRepository(),
	}
}

func (f *fixture) open(t *testing.T) *Builder {
	t.Helper()
	b, err := f.manager.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return b
}

func (f *fixture) dish(t *testing.T, id int64) models.CatalogDish {
	t.Helper()
	d, err := f.catalog.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("catalog GetByID(%d) error = %v", id, err)
	}
	return *d
}

// fill the first two steps so forward navigation works
func advanceToLastStep(t *testing.T, f *fixture, b *Builder) {
	t.Helper()
	b.SetClientInfo(false, "ООО Ромашка", "events@romashka.ru", "")
	b.SetEventInfo("2026-09-20", "18:00", "Лофт «Депо»", "Мария")
	if err := b.SetGroup(formats.GroupCatering); err != nil {
		t.Fatalf("SetGroup() error = %v", err)
	}
	b.SelectDish(f.dish(t, 7))
	if v := b.GoToStep(steps.TemplateAndSend); len(v) != 0 {
		t.Fatalf("unexpected violations advancing to last step: %v", v)
	}
}

func TestOpenRestoresSnapshot(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)
	id := b.ID()

	b.SetClientInfo(false, "Иванова Анна", "", "")
	b.SetGuests(40)
	b.SelectDish(f.dish(t, 5))
	key, err := b.AddCustomDish(ledger.Dish{Name: "Фирменный торт", Price: 3000}, 1)
	if err != nil {
		t.Fatalf("AddCustomDish() error = %v", err)
	}
	fmtA := b.CreateFormat("Банкет")
	_ = b.UpdateFormat(fmtA.ID, "Банкет", "18:00–23:00", 40)
	_ = b.AddFormatDish(fmtA.ID, key)

	// persist immediately, then drop the session and reopen
	if v := b.GoToStep(steps.ClientAndEvent); len(v) != 0 {
		t.Fatalf("unexpected violations: %v", v)
	}
	f.manager.Close(id)

	restored, err := f.manager.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	d := restored.Draft()
	if d.ClientName != "Иванова Анна" || d.Guests != 40 {
		t.Errorf("client fields not restored: %+v", d)
	}
	if len(d.Ledger.Dishes) != 2 {
		t.Errorf("ledger not restored, %d dishes", len(d.Ledger.Dishes))
	}
	if len(d.Registry.Formats) != 1 || !d.Registry.Formats[0].HasDish(key) {
		t.Error("format registry not restored")
	}
}

func TestOpenMistypedSnapshotStartsClean(t *testing.T) {
	f := newFixture(t)

	// a snapshot written by an older build: valid JSON, but guest_count no
	// longer matches the current field type
	if err := f.store.Save("stale", map[string]any{
		"client_name": "ООО Ромашка",
		"guest_count": "forty",
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	b, err := f.manager.Open(context.Background(), "stale")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	d := b.Draft()
	if d.ClientName != "" || d.Guests != 0 {
		t.Errorf("unreadable snapshot leaked into a fresh session: %+v", d)
	}
	if d.Ledger == nil || d.Registry == nil || d.Machine == nil {
		t.Error("fresh session missing sub-structures")
	}
}

func TestSelectClientPrefillPrefersChecklist(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	checklists := repository.NewInMemoryEventDetailsRepository(repository.SeedChecklists())
	questionnaires := repository.NewInMemoryEventDetailsRepository(repository.SeedQuestionnaires())

	if err := b.SelectClient(context.Background(), 1, checklists, questionnaires); err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}

	d := b.Draft()
	if d.ClientName != "ООО Ромашка" {
		t.Errorf("ClientName = %q", d.ClientName)
	}
	// checklist wins over the questionnaire date 2026-09-19
	if d.EventDate != "2026-09-20" {
		t.Errorf("EventDate = %q, want checklist value 2026-09-20", d.EventDate)
	}
	if d.Location != "Лофт «Депо»" {
		t.Errorf("Location = %q, want checklist value", d.Location)
	}
	if d.Guests != 60 {
		t.Errorf("Guests = %d, want 60", d.Guests)
	}
}

func TestSelectClientFallsBackThroughSources(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	questionnaires := repository.NewInMemoryEventDetailsRepository(repository.SeedQuestionnaires())

	// client 2 has a questionnaire but no checklist
	if err := b.SelectClient(context.Background(), 2, nil, questionnaires); err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}
	d := b.Draft()
	if d.EventDate != "2026-10-03" || d.Guests != 25 {
		t.Errorf("questionnaire fallback not applied: date %q guests %d", d.EventDate, d.Guests)
	}
}

func TestSetGroupReconcilesFormats(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	boxed := b.CreateFormat("Доставка боксов")
	if err := b.SetFormatGroup(boxed.ID, formats.GroupBox); err != nil {
		t.Fatalf("SetFormatGroup() error = %v", err)
	}
	b.CreateFormat("Фуршет")

	if err := b.SetGroup(formats.GroupCatering); err != nil {
		t.Fatalf("SetGroup() error = %v", err)
	}

	d := b.Draft()
	if len(d.Registry.Formats) != 1 {
		t.Fatalf("expected 1 format after group change, got %d", len(d.Registry.Formats))
	}
	if d.Registry.Formats[0].Name != "Фуршет" || d.Registry.Formats[0].Group != formats.GroupCatering {
		t.Errorf("wrong surviving format: %+v", d.Registry.Formats[0])
	}
}

func TestRemoveDishDropsFormatReferences(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	b.SelectDish(f.dish(t, 3))
	key := ledger.DishKey{Kind: ledger.KindCatalog, ID: 3}
	fm := b.CreateFormat("Фуршет")
	_ = b.AddFormatDish(fm.ID, key)

	b.RemoveDish(key)

	d := b.Draft()
	if d.Ledger.Find(key) != nil {
		t.Error("dish still in ledger")
	}
	if d.Registry.Formats[0].HasDish(key) {
		t.Error("format still references the removed dish")
	}
}

func TestAddFormatDishRequiresLedgerMembership(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)
	fm := b.CreateFormat("Фуршет")

	err := b.AddFormatDish(fm.ID, ledger.DishKey{Kind: ledger.KindCatalog, ID: 99})
	if err != ledger.ErrDishNotFound {
		t.Errorf("AddFormatDish(unselected) = %v, want ErrDishNotFound", err)
	}
}

func TestCashbackRedeemRejectedOnLowWallet(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	// client 3 has a zero wallet
	if err := b.SelectClient(context.Background(), 3, nil, nil); err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}
	b.SelectDish(f.dish(t, 7))
	_ = b.SetDishQuantity(ledger.DishKey{Kind: ledger.KindCatalog, ID: 7}, 100)

	err := b.SetCashback(context.Background(), pricing.CashbackSelection{BenefitID: 5, RedeemNow: true})
	if err != pricing.ErrInsufficientWallet {
		t.Fatalf("SetCashback() = %v, want ErrInsufficientWallet", err)
	}
	if b.Draft().Cashback.RedeemNow {
		t.Error("rejected redemption must leave use_cashback false")
	}

	// earning without redemption is always allowed
	if err := b.SetCashback(context.Background(), pricing.CashbackSelection{BenefitID: 5}); err != nil {
		t.Errorf("SetCashback(earn) error = %v", err)
	}
}

func TestCashbackRedeemAcceptedWithFunds(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	// client 1 holds 12500
	if err := b.SelectClient(context.Background(), 1, nil, nil); err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}
	b.SelectDish(f.dish(t, 7))

	if err := b.SetCashback(context.Background(), pricing.CashbackSelection{BenefitID: 5, RedeemNow: true}); err != nil {
		t.Fatalf("SetCashback() error = %v", err)
	}
	if !b.Draft().Cashback.RedeemNow {
		t.Error("feasible redemption must stick")
	}
}

func TestSubmitRequiresLastStep(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	_, _, err := b.Submit(context.Background(), f.proposals)
	if err != ErrNotLastStep {
		t.Errorf("Submit() error = %v, want ErrNotLastStep", err)
	}
}

func TestSubmitValidations(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)
	advanceToLastStep(t, f, b)

	// no template yet
	_, violations, err := b.Submit(context.Background(), f.proposals)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(violations) != 1 || violations[0].Field != "template_id" {
		t.Fatalf("violations = %v, want template_id", violations)
	}

	b.SetTemplate(1)

	// legacy discount + cashback is rejected
	b.SetDiscount(pricing.DiscountSelection{LegacyBenefitID: 2, LegacyOnMenu: true})
	_ = b.SetCashback(context.Background(), pricing.CashbackSelection{BenefitID: 5})
	_, violations, err = b.Submit(context.Background(), f.proposals)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(violations) != 1 || violations[0].Field != "cashback" {
		t.Fatalf("violations = %v, want cashback exclusivity", violations)
	}

	// a scoped discount with cashback is fine
	b.SetDiscount(pricing.DiscountSelection{MenuBenefitID: 2})
	proposal, violations, err := b.Submit(context.Background(), f.proposals)
	if err != nil || len(violations) != 0 {
		t.Fatalf("Submit() = %v, %v", violations, err)
	}
	if proposal.ID == 0 || proposal.Number == "" {
		t.Error("submitted proposal missing id or number")
	}
}

func TestSubmitClearsStoredDraft(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)
	id := b.ID()
	advanceToLastStep(t, f, b)
	b.SetTemplate(1)

	if _, violations, err := b.Submit(context.Background(), f.proposals); err != nil || len(violations) > 0 {
		t.Fatalf("Submit() = %v, %v", violations, err)
	}

	var probe Draft
	if found, _ := f.store.Restore(id, &probe); found {
		t.Error("stored draft must be cleared after successful submission")
	}
}

func TestPayloadReconcilesFormatsAndSelection(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	b.SetGuests(30)
	b.SelectDish(f.dish(t, 3))
	b.SelectDish(f.dish(t, 7))
	customKey, _ := b.AddCustomDish(ledger.Dish{Name: "Авторский салат", Price: 250}, 30)

	fm := b.CreateFormat("Банкет")
	_ = b.AddFormatDish(fm.ID, ledger.DishKey{Kind: ledger.KindCatalog, ID: 7})
	_ = b.AddFormatDish(fm.ID, customKey)

	payload := b.Payload()

	if len(payload.Items) != 2 {
		t.Fatalf("expected 2 catalog items, got %d: %+v", len(payload.Items), payload.Items)
	}
	seen := map[int64]bool{}
	for _, it := range payload.Items {
		if seen[it.ItemID] {
			t.Errorf("dish %d submitted twice", it.ItemID)
		}
		seen[it.ItemID] = true
		if it.Quantity != 30 {
			t.Errorf("item %d quantity = %d, want 30", it.ItemID, it.Quantity)
		}
	}
	if len(payload.CustomItems) != 1 || payload.CustomItems[0].Name != "Авторский салат" {
		t.Errorf("custom items = %+v", payload.CustomItems)
	}
	if len(payload.Formats) != 1 || payload.Formats[0].OrderIndex != 0 {
		t.Errorf("formats = %+v", payload.Formats)
	}
}

func TestPayloadGuestFallbackUsesFormatSum(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)

	a := b.CreateFormat("Welcome drink")
	_ = b.UpdateFormat(a.ID, "Welcome drink", "17:00–18:00", 30)
	c := b.CreateFormat("Банкет")
	_ = b.UpdateFormat(c.ID, "Банкет", "18:00–23:00", 20)

	payload := b.Payload()
	if payload.Guests != 50 {
		t.Errorf("payload guest count = %d, want 50 (format sum)", payload.Guests)
	}
}

func TestOpenForProposalHydrates(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)
	advanceToLastStep(t, f, b)
	b.SetTemplate(2)
	b.SetTransport(1500)
	b.AddEquipment(ledger.LineItem{Name: "Столы", Quantity: 5, Price: 400, Subcategory: "Мебель"})
	_, _ = b.AddCustomDish(ledger.Dish{Name: "Торт", Price: 5000, Measure: "2", Unit: units.Kilogram}, 1)

	proposal, violations, err := b.Submit(context.Background(), f.proposals)
	if err != nil || len(violations) > 0 {
		t.Fatalf("Submit() = %v, %v", violations, err)
	}

	edited, err := f.manager.OpenForProposal(context.Background(), f.proposals, proposal.ID)
	if err != nil {
		t.Fatalf("OpenForProposal() error = %v", err)
	}

	d := edited.Draft()
	if d.ProposalID != proposal.ID {
		t.Errorf("ProposalID = %d, want %d", d.ProposalID, proposal.ID)
	}
	if d.ClientName != "ООО Ромашка" || d.TemplateID != 2 || d.TransportCost != 1500 {
		t.Errorf("scalar fields not hydrated: %+v", d)
	}
	if len(d.Ledger.CatalogSelections()) != 1 || len(d.Ledger.CustomSelections()) != 1 {
		t.Errorf("ledger not hydrated: %d catalog, %d custom",
			len(d.Ledger.CatalogSelections()), len(d.Ledger.CustomSelections()))
	}
	if len(d.Ledger.Equipment) != 1 || d.Ledger.Equipment[0].Subcategory != "Мебель" {
		t.Errorf("equipment not hydrated: %+v", d.Ledger.Equipment)
	}
}

func TestSubmitCashbackWithoutClientBlocked(t *testing.T) {
	f := newFixture(t)

	// older proposals can carry redemption without a client reference
	stored, err := f.proposals.Create(context.Background(), models.ProposalPayload{
		ClientName:        "ООО Ромашка",
		EventDate:         "2026-09-20",
		ServiceGroup:      "catering",
		Items:             []models.ProposalItem{{ItemID: 1, Quantity: 10}},
		CashbackBenefitID: 5,
		UseCashback:       true,
		TemplateID:        1,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	b, err := f.manager.OpenForProposal(context.Background(), f.proposals, stored.ID)
	if err != nil {
		t.Fatalf("OpenForProposal() error = %v", err)
	}
	if v := b.GoToStep(steps.TemplateAndSend); len(v) != 0 {
		t.Fatalf("unexpected violations advancing: %v", v)
	}

	_, violations, err := b.Submit(context.Background(), f.proposals)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	var blocked bool
	for _, v := range violations {
		if v.Field == "cashback" {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("expected a cashback violation, got %v", violations)
	}
}

func TestDiscardRemovesSnapshot(t *testing.T) {
	f := newFixture(t)
	b := f.open(t)
	id := b.ID()
	if v := b.GoToStep(steps.ClientAndEvent); v != nil {
		t.Fatalf("unexpected violations: %v", v)
	}

	if err := f.manager.Discard(id); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	var probe Draft
	if found, _ := f.store.Restore(id, &probe); found {
		t.Error("snapshot survived discard")
	}
	if _, ok := f.manager.Get(id); ok {
		t.Error("session survived discard")
	}
}
