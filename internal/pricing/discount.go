// Package pricing aggregates the ledger and format registry into subtotals,
// discounts, cashback and final totals. All percentage math goes through
// shopspring/decimal and is rounded to 2 places to keep money exact.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mkrivosheev/kp-builder/internal/ledger"
	"github.com/mkrivosheev/kp-builder/internal/models"
)

var (
	// ErrInsufficientWallet rejects cashback redemption the client cannot cover.
	ErrInsufficientWallet = errors.New("wallet balance is below the cashback amount")
	// ErrLegacyDiscountWithCashback rejects the forbidden combination of the
	// legacy whole-proposal discount and a cashback selection.
	ErrLegacyDiscountWithCashback = errors.New("legacy discount and cashback are mutually exclusive")
)

// DiscountSelection references up to three independent category-scoped
// benefits plus per-subcategory equipment overrides. The legacy single
// benefit reference is kept for proposals created before scoped discounts
// existed; it only takes effect when no scoped reference is set.
type DiscountSelection struct {
	MenuBenefitID       int64            `json:"menu_benefit_id,omitempty"`
	EquipmentBenefitID  int64            `json:"equipment_benefit_id,omitempty"`
	ServiceBenefitID    int64            `json:"service_benefit_id,omitempty"`
	SubcategoryBenefits map[string]int64 `json:"subcategory_benefits,omitempty"`

	LegacyBenefitID   int64 `json:"legacy_benefit_id,omitempty"`
	LegacyOnMenu      bool  `json:"legacy_on_menu,omitempty"`
	LegacyOnEquipment bool  `json:"legacy_on_equipment,omitempty"`
	LegacyOnService   bool  `json:"legacy_on_service,omitempty"`
}

// HasScoped reports whether any non-legacy discount reference is set.
func (d DiscountSelection) HasScoped() bool {
	return d.MenuBenefitID != 0 ||
		d.EquipmentBenefitID != 0 ||
		d.ServiceBenefitID != 0 ||
		len(d.SubcategoryBenefits) > 0
}

// IsLegacy reports whether the legacy whole-proposal branch is in effect.
func (d DiscountSelection) IsLegacy() bool {
	return !d.HasScoped() && d.LegacyBenefitID != 0
}

// CashbackSelection is a cashback benefit reference plus the redeem-now flag.
type CashbackSelection struct {
	BenefitID int64 `json:"benefit_id,omitempty"`
	RedeemNow bool  `json:"redeem_now,omitempty"`
}

// DiscountBreakdown reports the discount per scope. Scopes are independent
// and additive; Legacy is exclusive with the scoped three.
type DiscountBreakdown struct {
	Menu      float64 `json:"menu"`
	Equipment float64 `json:"equipment"`
	Service   float64 `json:"service"`
	Legacy    float64 `json:"legacy"`
	Total     float64 `json:"total"`
}

// Resolver maps benefit references onto monetary deductions and cashback
// amounts. Benefits are read-only reference data; inactive or mistyped
// references resolve to a zero percentage rather than failing.
type Resolver struct {
	benefits map[int64]models.Benefit
}

// NewResolver indexes the active benefit list.
func NewResolver(benefits []models.Benefit) *Resolver {
	idx := make(map[int64]models.Benefit, len(benefits))
	for _, b := range benefits {
		idx[b.ID] = b
	}
	return &Resolver{benefits: idx}
}

func (r *Resolver) percent(id int64, typ models.BenefitType) float64 {
	if id == 0 {
		return 0
	}
	b, ok := r.benefits[id]
	if !ok || !b.IsActive || b.Type != typ {
		return 0
	}
	if b.Percent < 0 {
		return 0
	}
	return b.Percent
}

// Discounts computes the per-scope discount breakdown for the current
// ledger state. Every scope's amount is clamped to [0, its subtotal].
func (r *Resolver) Discounts(sel DiscountSelection, led *ledger.Ledger) DiscountBreakdown {
	var bd DiscountBreakdown

	if sel.IsLegacy() {
		pct := r.percent(sel.LegacyBenefitID, models.BenefitDiscount)
		var base float64
		if sel.LegacyOnMenu {
			base += led.RegularDishesTotal()
		}
		if sel.LegacyOnEquipment {
			base += led.EquipmentTotal()
		}
		if sel.LegacyOnService {
			base += led.ServicesTotal()
		}
		bd.Legacy = clamp(percentOf(base, pct), base)
		bd.Total = bd.Legacy
		return bd
	}

	menuBase := led.RegularDishesTotal()
	bd.Menu = clamp(percentOf(menuBase, r.percent(sel.MenuBenefitID, models.BenefitDiscount)), menuBase)

	bd.Equipment = r.equipmentDiscount(sel, led)

	serviceBase := led.ServicesTotal()
	bd.Service = clamp(percentOf(serviceBase, r.percent(sel.ServiceBenefitID, models.BenefitDiscount)), serviceBase)

	bd.Total = round2(bd.Menu + bd.Equipment + bd.Service)
	return bd
}

// equipmentDiscount applies the subcategory-override rule: with overrides
// present, each overridden line item gets its own percentage and the
// general equipment benefit shrinks to the loss/breakage charge only;
// without overrides the general benefit covers the full equipment total.
func (r *Resolver) equipmentDiscount(sel DiscountSelection, led *ledger.Ledger) float64 {
	base := led.EquipmentTotal()
	generalPct := r.percent(sel.EquipmentBenefitID, models.BenefitDiscount)

	if len(sel.SubcategoryBenefits) == 0 {
		return clamp(percentOf(base, generalPct), base)
	}

	var amount float64
	for _, item := range led.Equipment {
		benefitID, ok := sel.SubcategoryBenefits[item.Subcategory]
		if !ok {
			continue
		}
		amount += percentOf(item.Amount(), r.percent(benefitID, models.BenefitDiscount))
	}
	if generalPct > 0 {
		amount += percentOf(led.LossCharge, generalPct)
	}
	return clamp(round2(amount), base)
}

// Cashback computes the accrued cashback from the after-discount subtotals
// plus the transport total.
func (r *Resolver) Cashback(sel CashbackSelection, menuAfter, equipmentAfter, serviceAfter, transport float64) float64 {
	pct := r.percent(sel.BenefitID, models.BenefitCashback)
	base := menuAfter + equipmentAfter + serviceAfter + transport
	return clamp(percentOf(base, pct), base)
}

// ValidateRedeem checks wallet feasibility of an immediate redemption.
func ValidateRedeem(amount, walletBalance float64) error {
	if walletBalance < amount {
		return ErrInsufficientWallet
	}
	return nil
}

// ValidateExclusivity rejects a legacy discount combined with cashback.
// Scoped discounts may coexist with cashback.
func ValidateExclusivity(d DiscountSelection, c CashbackSelection) error {
	if d.LegacyBenefitID != 0 && c.BenefitID != 0 {
		return ErrLegacyDiscountWithCashback
	}
	return nil
}

func percentOf(amount, pct float64) float64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
