package models

// BenefitType distinguishes percentage discounts from cashback accrual.
type BenefitType string

const (
	BenefitDiscount BenefitType = "discount"
	BenefitCashback BenefitType = "cashback"
)

// Benefit is a reusable percentage-based discount or cashback profile
// managed by the benefits service.
type Benefit struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Type     BenefitType `json:"type"`
	Percent  float64     `json:"value"`
	IsActive bool        `json:"is_active"`
}
