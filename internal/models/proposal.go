package models

import (
	"time"

	"github.com/mkrivosheev/kp-builder/internal/units"
)

// ProposalItem is a catalog dish reference inside the persisted payload.
// Custom dishes are never sent as catalog references; they travel as
// ProposalCustomItem with their full definition.
type ProposalItem struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// ProposalCustomItem is a user-authored dish carried inline in the payload.
type ProposalCustomItem struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Measure     string     `json:"measure,omitempty"`
	Unit        units.Unit `json:"unit,omitempty"`
	Price       float64    `json:"price"`
	Quantity    int        `json:"quantity"`
}

// ProposalLineItem is an equipment or service line in the payload.
type ProposalLineItem struct {
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Subcategory string  `json:"subcategory,omitempty"`
}

// ProposalFormat is one event sub-format in the payload.
type ProposalFormat struct {
	Name       string `json:"name"`
	TimeRange  string `json:"time_window"`
	Guests     int    `json:"guest_count"`
	OrderIndex int    `json:"order_index"`
}

// ProposalPayload is the flattened draft handed to the proposal
// persistence service on create/update.
type ProposalPayload struct {
	ClientID    int64  `json:"client_id,omitempty"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`

	EventDate    string `json:"event_date"`
	EventTime    string `json:"event_time,omitempty"`
	Location     string `json:"location,omitempty"`
	Coordinator  string `json:"coordinator,omitempty"`
	ServiceGroup string `json:"service_group,omitempty"`
	Guests       int    `json:"guest_count"`

	Items       []ProposalItem       `json:"items"`
	CustomItems []ProposalCustomItem `json:"custom_items,omitempty"`
	Equipment   []ProposalLineItem   `json:"equipment,omitempty"`
	Services    []ProposalLineItem   `json:"services,omitempty"`
	Formats     []ProposalFormat     `json:"formats,omitempty"`

	LossCharge    float64 `json:"loss_charge,omitempty"`
	TransportCost float64 `json:"transport_cost,omitempty"`

	MenuBenefitID        int64           `json:"menu_benefit_id,omitempty"`
	EquipmentBenefitID   int64           `json:"equipment_benefit_id,omitempty"`
	ServiceBenefitID     int64           `json:"service_benefit_id,omitempty"`
	SubcategoryBenefits  map[string]int64 `json:"subcategory_benefits,omitempty"`
	LegacyBenefitID      int64           `json:"discount_id,omitempty"`
	LegacyOnMenu         bool            `json:"discount_on_menu,omitempty"`
	LegacyOnEquipment    bool            `json:"discount_on_equipment,omitempty"`
	LegacyOnService      bool            `json:"discount_on_service,omitempty"`
	CashbackBenefitID    int64           `json:"cashback_id,omitempty"`
	UseCashback          bool            `json:"use_cashback,omitempty"`

	TemplateID      int64  `json:"template_id,omitempty"`
	SendEmail       bool   `json:"send_email,omitempty"`
	SendTelegram    bool   `json:"send_telegram,omitempty"`
	EmailMessage    string `json:"email_message,omitempty"`
	TelegramMessage string `json:"telegram_message,omitempty"`

	// Computed totals, flattened.
	DishesTotal    float64 `json:"dishes_total"`
	RegularTotal   float64 `json:"regular_dishes_total"`
	EquipmentTotal float64 `json:"equipment_total"`
	ServiceTotal   float64 `json:"service_total"`
	Discount       float64 `json:"discount"`
	Cashback       float64 `json:"cashback"`
	Total          float64 `json:"total"`
	PerGuestPrice  float64 `json:"per_guest_price"`
	TotalWeight    float64 `json:"total_weight"`
	TotalVolume    float64 `json:"total_volume"`
}

// Proposal is a persisted commercial proposal.
type Proposal struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProposalPayload
}
