package pricing

import (
	"github.com/mkrivosheev/kp-builder/internal/formats"
	"github.com/mkrivosheev/kp-builder/internal/ledger"
)

// Totals is the full derived pricing picture of a draft. It is a pure
// function of the current ledger, registry and selections; nothing here is
// stored.
type Totals struct {
	DishesTotal        float64 `json:"dishes_total"`
	RegularDishesTotal float64 `json:"regular_dishes_total"`
	EquipmentTotal     float64 `json:"equipment_total"`
	ServiceTotal       float64 `json:"service_total"`
	TransportTotal     float64 `json:"transport_total"`

	Discounts DiscountBreakdown `json:"discounts"`

	CashbackEarned   float64 `json:"cashback_earned"`
	CashbackRedeemed float64 `json:"cashback_redeemed"`

	Total float64 `json:"total"`

	// Two guest figures for two display contexts: the sum across formats
	// backs the output weight/volume figures, the max backs the per-person
	// price fallback. Kept separate on purpose; see DESIGN.md.
	GuestsForOutput  int `json:"guests_for_output"`
	GuestsForPricing int `json:"guests_for_pricing"`

	PerGuestPrice  float64 `json:"per_guest_price"`
	PerGuestWeight float64 `json:"per_guest_weight"`
	PerGuestVolume float64 `json:"per_guest_volume"`
	TotalWeight    float64 `json:"total_weight"`
	TotalVolume    float64 `json:"total_volume"`
}

// Engine computes Totals on demand.
type Engine struct {
	resolver *Resolver
}

// NewEngine creates an engine over the given benefit reference data.
func NewEngine(resolver *Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// Input is the state slice the engine reads.
type Input struct {
	Ledger    *ledger.Ledger
	Registry  *formats.Registry
	Guests    int // proposal-level guest count, 0 when unset
	Transport float64
	Discount  DiscountSelection
	Cashback  CashbackSelection
}

// Compute derives the full totals picture. It never mutates state and
// never fails: malformed inputs degrade to zero contributions.
func (e *Engine) Compute(in Input) Totals {
	led := in.Ledger

	t := Totals{
		DishesTotal:        round2(led.DishesTotal()),
		RegularDishesTotal: round2(led.RegularDishesTotal()),
		EquipmentTotal:     round2(led.EquipmentTotal()),
		ServiceTotal:       round2(led.ServicesTotal()),
		TransportTotal:     in.Transport,
		TotalWeight:        led.TotalWeight(),
		TotalVolume:        led.TotalVolume(),
	}

	t.Discounts = e.resolver.Discounts(in.Discount, led)

	menuAfter := t.RegularDishesTotal - t.Discounts.Menu
	equipmentAfter := t.EquipmentTotal - t.Discounts.Equipment
	serviceAfter := t.ServiceTotal - t.Discounts.Service
	if in.Discount.IsLegacy() {
		// the legacy amount is already bounded by its included subtotals;
		// attribute it to the menu side of the cashback base
		menuAfter = t.RegularDishesTotal - t.Discounts.Legacy
		equipmentAfter = t.EquipmentTotal
		serviceAfter = t.ServiceTotal
	}

	cashback := e.resolver.Cashback(in.Cashback, menuAfter, equipmentAfter, serviceAfter, in.Transport)
	if in.Cashback.RedeemNow {
		t.CashbackRedeemed = cashback
	} else {
		t.CashbackEarned = cashback
	}

	t.Total = round2(t.DishesTotal + t.EquipmentTotal + t.ServiceTotal + in.Transport -
		t.Discounts.Total - t.CashbackRedeemed)

	t.GuestsForOutput = in.Guests
	t.GuestsForPricing = in.Guests
	if in.Guests <= 0 && in.Registry != nil {
		t.GuestsForOutput = in.Registry.GuestSum()
		t.GuestsForPricing = in.Registry.GuestMax()
	}

	if t.GuestsForPricing > 0 {
		t.PerGuestPrice = round2(t.Total / float64(t.GuestsForPricing))
	}
	t.PerGuestWeight = led.PerGuestWeight(t.GuestsForOutput)
	t.PerGuestVolume = led.PerGuestVolume(t.GuestsForOutput)

	return t
}
