// Package builder holds the proposal draft aggregate: one explicit state
// root mutated through named commands, with derived totals computed on
// demand and every mutation scheduling a debounced snapshot save.
package builder

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mkrivosheev/kp-builder/internal/draft"
	"github.com/mkrivosheev/kp-builder/internal/formats"
	"github.com/mkrivosheev/kp-builder/internal/ledger"
	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/pricing"
	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/steps"
)

var (
	ErrUnknownGroup    = errors.New("unknown service group")
	ErrCustomDishName  = errors.New("custom dish requires a name")
	ErrNotLastStep     = errors.New("submission is only available from the final step")
	ErrCashbackNotSet  = errors.New("no cashback benefit selected")
	ErrClientRequired  = errors.New("cashback redemption requires a selected client")
)

// Draft is the aggregate root of one proposal being built. Everything here
// serializes into the snapshot store as-is.
type Draft struct {
	ID         string `json:"id"`
	ProposalID int64  `json:"proposal_id,omitempty"` // set when editing an existing proposal

	ExistingClient bool   `json:"existing_client,omitempty"`
	ClientID       int64  `json:"client_id,omitempty"`
	ClientName     string `json:"client_name,omitempty"`
	ClientEmail    string `json:"client_email,omitempty"`
	ClientPhone    string `json:"client_phone,omitempty"`

	EventDate     string               `json:"event_date,omitempty"`
	EventTime     string               `json:"event_time,omitempty"`
	Location      string               `json:"location,omitempty"`
	Coordinator   string               `json:"coordinator,omitempty"`
	Guests        int                  `json:"guest_count,omitempty"`
	Group         formats.ServiceGroup `json:"service_group,omitempty"`
	TransportCost float64              `json:"transport_cost,omitempty"`

	Ledger   *ledger.Ledger            `json:"ledger"`
	Registry *formats.Registry         `json:"registry"`
	Discount pricing.DiscountSelection `json:"discount"`
	Cashback pricing.CashbackSelection `json:"cashback"`

	TemplateID      int64  `json:"template_id,omitempty"`
	SendEmail       bool   `json:"send_email,omitempty"`
	SendTelegram    bool   `json:"send_telegram,omitempty"`
	EmailMessage    string `json:"email_message,omitempty"`
	TelegramMessage string `json:"telegram_message,omitempty"`

	Machine *steps.Machine `json:"machine"`
}

// NewDraft creates an empty draft with the given id.
func NewDraft(id string) *Draft {
	return &Draft{
		ID:       id,
		Ledger:   ledger.New(),
		Registry: formats.New(),
		Machine:  steps.New(),
	}
}

// normalize repairs a draft restored from a partial snapshot: missing
// sub-structures default to empty rather than nil.
func (d *Draft) normalize(id string) {
	d.ID = id
	if d.Ledger == nil {
		d.Ledger = ledger.New()
	}
	if d.Registry == nil {
		d.Registry = formats.New()
	}
	if d.Machine == nil {
		d.Machine = steps.New()
	}
	if !d.Machine.Step.Valid() {
		d.Machine.Step = steps.ClientAndEvent
	}
	if !d.Group.Valid() {
		d.Group = formats.GroupNone
	}
}

// Builder wraps one draft with its collaborators. All mutations run under
// the mutex: exactly one writer per draft.
type Builder struct {
	mu sync.Mutex

	draft   *Draft
	store   *draft.Store
	engine  *pricing.Engine
	clients repository.ClientRepository
	log     *slog.Logger
}

// ID returns the draft id.
func (b *Builder) ID() string {
	return b.draft.ID
}

// Draft returns the aggregate for reading. Callers must not mutate it.
func (b *Builder) Draft() *Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft
}

// Totals recomputes the derived pricing picture from current state.
func (b *Builder) Totals() pricing.Totals {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalsLocked()
}

func (b *Builder) totalsLocked() pricing.Totals {
	return b.engine.Compute(pricing.Input{
		Ledger:    b.draft.Ledger,
		Registry:  b.draft.Registry,
		Guests:    b.draft.Guests,
		Transport: b.draft.TransportCost,
		Discount:  b.draft.Discount,
		Cashback:  b.draft.Cashback,
	})
}

// scheduleSave is called after every successful mutation.
func (b *Builder) scheduleSave() {
	b.store.Schedule(b.draft.ID, b.draft)
}

// --- client and event commands ---

// SetClientInfo updates the free-form client fields.
func (b *Builder) SetClientInfo(existing bool, name, email, phone string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.ExistingClient = existing
	b.draft.ClientName = name
	b.draft.ClientEmail = email
	b.draft.ClientPhone = phone
	b.scheduleSave()
}

// SelectClient picks an existing client and pre-populates client and event
// fields. The checklist is the preferred autofill source; the legacy
// questionnaire fills whatever the checklist left empty; prior-event fields
// come last.
func (b *Builder) SelectClient(ctx context.Context, clientID int64, checklists, questionnaires repository.EventDetailsRepository) error {
	client, err := b.clients.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	var primary, secondary *models.EventDetails
	if checklists != nil {
		primary, _ = checklists.ForClient(ctx, clientID)
	}
	if questionnaires != nil {
		secondary, _ = questionnaires.ForClient(ctx, clientID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.draft
	d.ExistingClient = true
	d.ClientID = client.ID
	d.ClientName = client.Name
	d.ClientEmail = client.Email
	d.ClientPhone = client.Phone

	apply := func(details *models.EventDetails) {
		if details == nil {
			return
		}
		if d.EventDate == "" {
			d.EventDate = details.EventDate
		}
		if d.EventTime == "" {
			d.EventTime = details.EventTime
		}
		if d.Location == "" {
			d.Location = details.Location
		}
		if d.Coordinator == "" {
			d.Coordinator = details.Coordinator
		}
		if d.Guests == 0 {
			d.Guests = details.Guests
		}
	}
	apply(primary)
	apply(secondary)
	if d.EventDate == "" {
		d.EventDate = client.LastEventDate
	}
	if d.Location == "" {
		d.Location = client.LastEventLocation
	}

	b.scheduleSave()
	return nil
}

// SetEventInfo updates the event metadata fields.
func (b *Builder) SetEventInfo(date, eventTime, location, coordinator string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.EventDate = date
	b.draft.EventTime = eventTime
	b.draft.Location = location
	b.draft.Coordinator = coordinator
	b.scheduleSave()
}

// SetGuests sets the proposal-level guest count.
func (b *Builder) SetGuests(guests int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if guests < 0 {
		guests = 0
	}
	b.draft.Guests = guests
	b.scheduleSave()
}

// SetTransport sets the transport/delivery charge.
func (b *Builder) SetTransport(cost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cost < 0 {
		cost = 0
	}
	b.draft.TransportCost = cost
	b.scheduleSave()
}

// SetGroup chooses the proposal-level service group and reconciles the
// format registry with it.
func (b *Builder) SetGroup(group formats.ServiceGroup) error {
	if !group.Valid() {
		return ErrUnknownGroup
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Group = group
	b.draft.Registry.ApplyGroup(group)
	b.scheduleSave()
	return nil
}

// --- dish commands ---

// SelectDish adds a catalog dish to the ledger.
func (b *Builder) SelectDish(d models.CatalogDish) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Ledger.SelectCatalogDish(d, b.guestsLocked())
	b.scheduleSave()
}

// ToggleDish flips a catalog dish selection; reports the resulting state.
func (b *Builder) ToggleDish(d models.CatalogDish) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	selected := b.draft.Ledger.ToggleCatalogDish(d, b.guestsLocked())
	if !selected {
		b.draft.Registry.DropDish(ledger.DishKey{Kind: ledger.KindCatalog, ID: d.ID})
	}
	b.scheduleSave()
	return selected
}

// RemoveDish drops a dish from the ledger and from every format.
func (b *Builder) RemoveDish(key ledger.DishKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Ledger.RemoveDish(key)
	b.draft.Registry.DropDish(key)
	b.scheduleSave()
}

// AddCustomDish creates a user-authored dish. A name is required before the
// dish may enter the ledger.
func (b *Builder) AddCustomDish(d ledger.Dish, qty int) (ledger.DishKey, error) {
	if d.Name == "" {
		return ledger.DishKey{}, ErrCustomDishName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty <= 0 {
		qty = b.guestsLocked()
	}
	key := b.draft.Ledger.AddCustomDish(d, qty)
	b.scheduleSave()
	return key, nil
}

// UpdateCustomDish replaces a custom dish definition.
func (b *Builder) UpdateCustomDish(id int64, d ledger.Dish) error {
	if d.Name == "" {
		return ErrCustomDishName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Ledger.UpdateCustomDish(id, d); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// SetDishQuantity updates a selection's quantity.
func (b *Builder) SetDishQuantity(key ledger.DishKey, qty int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Ledger.SetQuantity(key, qty); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// SetPriceOverride sets or clears a per-dish price override.
func (b *Builder) SetPriceOverride(key ledger.DishKey, price *float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Ledger.SetPriceOverride(key, price); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// SetMeasureOverride sets or clears a per-dish measure override.
func (b *Builder) SetMeasureOverride(key ledger.DishKey, measure *string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Ledger.SetMeasureOverride(key, measure); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// --- equipment and service commands ---

// AddEquipment appends an equipment line item.
func (b *Builder) AddEquipment(item ledger.LineItem) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.draft.Ledger.AddEquipment(item)
	b.scheduleSave()
	return id
}

// UpdateEquipment replaces an equipment line item.
func (b *Builder) UpdateEquipment(id int64, item ledger.LineItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Ledger.UpdateEquipment(id, item); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// RemoveEquipment drops an equipment line item.
func (b *Builder) RemoveEquipment(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Ledger.RemoveEquipment(id)
	b.scheduleSave()
}

// SetLossCharge sets the equipment loss/breakage charge.
func (b *Builder) SetLossCharge(charge float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Ledger.SetLossCharge(charge)
	b.scheduleSave()
}

// AddService appends a service line item.
func (b *Builder) AddService(item ledger.LineItem) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.draft.Ledger.AddService(item)
	b.scheduleSave()
	return id
}

// UpdateService replaces a service line item.
func (b *Builder) UpdateService(id int64, item ledger.LineItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Ledger.UpdateService(id, item); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// RemoveService drops a service line item.
func (b *Builder) RemoveService(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Ledger.RemoveService(id)
	b.scheduleSave()
}

// --- format commands ---

// CreateFormat adds an event format, inheriting the proposal-level group.
func (b *Builder) CreateFormat(name string) *formats.Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.draft.Registry.Create(name)
	f.Group = b.draft.Group
	b.scheduleSave()
	return f
}

// UpdateFormat renames a format and sets its window and guest count.
func (b *Builder) UpdateFormat(id int, name, timeRange string, guests int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Registry.Rename(id, name); err != nil {
		return err
	}
	_ = b.draft.Registry.SetTimeRange(id, timeRange)
	_ = b.draft.Registry.SetGuests(id, guests)
	b.scheduleSave()
	return nil
}

// SetFormatGroup tags a single format with a service group.
func (b *Builder) SetFormatGroup(id int, group formats.ServiceGroup) error {
	if !group.Valid() {
		return ErrUnknownGroup
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Registry.SetGroup(id, group); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// DeleteFormat removes a format.
func (b *Builder) DeleteFormat(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Registry.Delete(id); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// AddFormatDish adds a ledger dish to a format's selection.
func (b *Builder) AddFormatDish(formatID int, key ledger.DishKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draft.Ledger.Find(key) == nil {
		return ledger.ErrDishNotFound
	}
	if err := b.draft.Registry.AddDish(formatID, key); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// RemoveFormatDish drops a dish from a format's selection.
func (b *Builder) RemoveFormatDish(formatID int, key ledger.DishKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.draft.Registry.RemoveDish(formatID, key); err != nil {
		return err
	}
	b.scheduleSave()
	return nil
}

// --- discount, cashback, template, delivery ---

// SetDiscount replaces the discount selection.
func (b *Builder) SetDiscount(sel pricing.DiscountSelection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.Discount = sel
	b.scheduleSave()
}

// SetCashback replaces the cashback selection. Enabling immediate
// redemption is gated on the client's wallet covering the computed amount;
// an infeasible redemption is rejected with no state change.
func (b *Builder) SetCashback(ctx context.Context, sel pricing.CashbackSelection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sel.RedeemNow {
		if sel.BenefitID == 0 {
			return ErrCashbackNotSet
		}
		if b.draft.ClientID == 0 {
			return ErrClientRequired
		}
		client, err := b.clients.GetByID(ctx, b.draft.ClientID)
		if err != nil {
			return err
		}
		amount := b.engine.Compute(pricing.Input{
			Ledger:    b.draft.Ledger,
			Registry:  b.draft.Registry,
			Guests:    b.draft.Guests,
			Transport: b.draft.TransportCost,
			Discount:  b.draft.Discount,
			Cashback:  pricing.CashbackSelection{BenefitID: sel.BenefitID},
		}).CashbackEarned
		if err := pricing.ValidateRedeem(amount, client.WalletBalance); err != nil {
			return err
		}
	}

	b.draft.Cashback = sel
	b.scheduleSave()
	return nil
}

// SetTemplate chooses the output template.
func (b *Builder) SetTemplate(templateID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.TemplateID = templateID
	b.scheduleSave()
}

// SetDelivery sets the delivery-channel flags and message bodies.
func (b *Builder) SetDelivery(email, telegram bool, emailMsg, telegramMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft.SendEmail = email
	b.draft.SendTelegram = telegram
	b.draft.EmailMessage = emailMsg
	b.draft.TelegramMessage = telegramMsg
	b.scheduleSave()
}

// --- step navigation ---

// GoToStep attempts a step transition. Violations abort forward moves;
// every successful transition persists the draft immediately.
func (b *Builder) GoToStep(target steps.Step) []steps.Violation {
	b.mu.Lock()
	defer b.mu.Unlock()

	violations := b.draft.Machine.GoTo(target, b.gateStateLocked())
	if len(violations) > 0 {
		return violations
	}
	if err := b.store.Save(b.draft.ID, b.draft); err != nil {
		b.log.Error("step transition save failed", "draft_id", b.draft.ID, "error", err)
	}
	return nil
}

// CurrentStep returns the machine position.
func (b *Builder) CurrentStep() steps.Step {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft.Machine.Current()
}

func (b *Builder) gateStateLocked() steps.GateState {
	d := b.draft
	customNames := make([]string, 0)
	for _, s := range d.Ledger.CustomSelections() {
		customNames = append(customNames, s.Dish.Name)
	}
	return steps.GateState{
		ClientName:      d.ClientName,
		ExistingClient:  d.ExistingClient,
		ClientID:        d.ClientID,
		ClientEmail:     d.ClientEmail,
		EventDate:       d.EventDate,
		Group:           d.Group,
		HasCatalogDish:  len(d.Ledger.CatalogSelections()) > 0,
		CustomDishNames: customNames,
		TemplateID:      d.TemplateID,
		SendEmail:       d.SendEmail,
	}
}

// guestsLocked resolves the guest count used for new dish quantities: the
// explicit proposal-level count, falling back to the format maximum.
func (b *Builder) guestsLocked() int {
	if b.draft.Guests > 0 {
		return b.draft.Guests
	}
	return b.draft.Registry.GuestMax()
}
