// Package ledger holds the dish, equipment and service line items selected
// for a proposal, with per-dish overrides and the aggregate price, weight
// and volume figures derived from them.
package ledger

import (
	"errors"

	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/units"
)

var (
	ErrDishNotFound     = errors.New("dish not selected")
	ErrNotCustomDish    = errors.New("catalog dishes cannot be edited")
	ErrLineItemNotFound = errors.New("line item not found")
)

// DishKind tags a selection as catalog-sourced or user-authored.
type DishKind string

const (
	KindCatalog DishKind = "catalog"
	KindCustom  DishKind = "custom"
)

// DishKey identifies a selected dish. Catalog dishes carry their catalog id,
// custom dishes a locally assigned sequential id; the kind tag keeps the two
// id spaces apart.
type DishKey struct {
	Kind DishKind `json:"kind"`
	ID   int64    `json:"id"`
}

// Dish is the dish definition carried by a selection. For catalog dishes it
// is a frozen copy of the catalog entry; for custom dishes it is fully
// user-editable.
type Dish struct {
	Kind        DishKind   `json:"kind"`
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Measure     string     `json:"measure,omitempty"`
	Unit        units.Unit `json:"unit,omitempty"`
	Price       float64    `json:"price"`
	Category    string     `json:"category,omitempty"`
	Subcategory string     `json:"subcategory,omitempty"`
}

// Key returns the dish's ledger key.
func (d Dish) Key() DishKey {
	return DishKey{Kind: d.Kind, ID: d.ID}
}

// Selection is one selected dish with its quantity and local overrides.
// Overrides live on the selection itself, so removing a dish can never
// leave orphaned override entries behind.
type Selection struct {
	Dish            Dish     `json:"dish"`
	Quantity        int      `json:"quantity"`
	PriceOverride   *float64 `json:"price_override,omitempty"`
	MeasureOverride *string  `json:"measure_override,omitempty"`
}

// UnitPrice resolves the effective price, honouring a local override.
func (s *Selection) UnitPrice() float64 {
	if s.PriceOverride != nil {
		return *s.PriceOverride
	}
	return s.Dish.Price
}

// Measure resolves the effective measure string, honouring a local override.
func (s *Selection) Measure() string {
	if s.MeasureOverride != nil {
		return *s.MeasureOverride
	}
	return s.Dish.Measure
}

// Amount is quantity × resolved price; negative inputs count as zero.
func (s *Selection) Amount() float64 {
	return clampQty(s.Quantity) * clampPrice(s.UnitPrice())
}

// LineItem is an equipment or service position. Subcategory is set for
// equipment only and drives per-subcategory discount assignment.
type LineItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Subcategory string  `json:"subcategory,omitempty"`
}

// Amount is quantity × price; negative or missing values count as zero.
func (li LineItem) Amount() float64 {
	return clampQty(li.Quantity) * clampPrice(li.Price)
}

// Ledger is the full set of selected positions. Fields are exported so the
// whole structure serializes into the draft snapshot as-is; all mutation
// goes through the methods below.
type Ledger struct {
	Dishes     []*Selection `json:"dishes"`
	Equipment  []LineItem   `json:"equipment"`
	Services   []LineItem   `json:"services"`
	LossCharge float64      `json:"loss_charge"`

	NextCustomID int64 `json:"next_custom_id"`
	NextLineID   int64 `json:"next_line_id"`
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		Dishes:       make([]*Selection, 0),
		Equipment:    make([]LineItem, 0),
		Services:     make([]LineItem, 0),
		NextCustomID: 1,
		NextLineID:   1,
	}
}

// Find returns the selection for a dish key, or nil.
func (l *Ledger) Find(key DishKey) *Selection {
	for _, s := range l.Dishes {
		if s.Dish.Key() == key {
			return s
		}
	}
	return nil
}

// SelectCatalogDish adds a catalog dish to the ledger. The initial quantity
// is the current guest count, or 1 when no guest count is known yet.
// Selecting an already selected dish is a no-op.
func (l *Ledger) SelectCatalogDish(d models.CatalogDish, guests int) {
	key := DishKey{Kind: KindCatalog, ID: d.ID}
	if l.Find(key) != nil {
		return
	}
	qty := guests
	if qty <= 0 {
		qty = 1
	}
	l.Dishes = append(l.Dishes, &Selection{
		Dish: Dish{
			Kind:        KindCatalog,
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Measure:     d.Measure,
			Unit:        d.Unit,
			Price:       d.Price,
			Category:    d.Category,
			Subcategory: d.Subcategory,
		},
		Quantity: qty,
	})
}

// ToggleCatalogDish selects the dish if unselected and removes it otherwise.
// Returns true when the dish ends up selected.
func (l *Ledger) ToggleCatalogDish(d models.CatalogDish, guests int) bool {
	key := DishKey{Kind: KindCatalog, ID: d.ID}
	if l.Find(key) != nil {
		l.RemoveDish(key)
		return false
	}
	l.SelectCatalogDish(d, guests)
	return true
}

// RemoveDish drops a selection along with its quantity and overrides.
func (l *Ledger) RemoveDish(key DishKey) {
	for i, s := range l.Dishes {
		if s.Dish.Key() == key {
			l.Dishes = append(l.Dishes[:i], l.Dishes[i+1:]...)
			return
		}
	}
}

// AddCustomDish creates a user-authored dish with the next local id and
// returns its key.
func (l *Ledger) AddCustomDish(d Dish, qty int) DishKey {
	d.Kind = KindCustom
	d.ID = l.NextCustomID
	l.NextCustomID++
	if qty <= 0 {
		qty = 1
	}
	l.Dishes = append(l.Dishes, &Selection{Dish: d, Quantity: qty})
	return d.Key()
}

// UpdateCustomDish replaces the definition of a custom dish. Catalog dishes
// are immutable aside from overrides.
func (l *Ledger) UpdateCustomDish(id int64, d Dish) error {
	key := DishKey{Kind: KindCustom, ID: id}
	s := l.Find(key)
	if s == nil {
		if l.Find(DishKey{Kind: KindCatalog, ID: id}) != nil {
			return ErrNotCustomDish
		}
		return ErrDishNotFound
	}
	d.Kind = KindCustom
	d.ID = id
	s.Dish = d
	return nil
}

// SetQuantity updates the quantity of a selected dish.
func (l *Ledger) SetQuantity(key DishKey, qty int) error {
	s := l.Find(key)
	if s == nil {
		return ErrDishNotFound
	}
	s.Quantity = qty
	return nil
}

// SetPriceOverride sets or clears (nil) the local price override of a dish.
func (l *Ledger) SetPriceOverride(key DishKey, price *float64) error {
	s := l.Find(key)
	if s == nil {
		return ErrDishNotFound
	}
	if s.Dish.Kind == KindCustom && price != nil {
		// custom dishes are edited directly, not overridden
		s.Dish.Price = *price
		return nil
	}
	s.PriceOverride = price
	return nil
}

// SetMeasureOverride sets or clears (nil) the local measure override.
func (l *Ledger) SetMeasureOverride(key DishKey, measure *string) error {
	s := l.Find(key)
	if s == nil {
		return ErrDishNotFound
	}
	if s.Dish.Kind == KindCustom && measure != nil {
		s.Dish.Measure = *measure
		return nil
	}
	s.MeasureOverride = measure
	return nil
}

// AddEquipment appends an equipment line item and returns its id.
func (l *Ledger) AddEquipment(item LineItem) int64 {
	item.ID = l.NextLineID
	l.NextLineID++
	l.Equipment = append(l.Equipment, item)
	return item.ID
}

// UpdateEquipment replaces an equipment line item in place.
func (l *Ledger) UpdateEquipment(id int64, item LineItem) error {
	for i := range l.Equipment {
		if l.Equipment[i].ID == id {
			item.ID = id
			l.Equipment[i] = item
			return nil
		}
	}
	return ErrLineItemNotFound
}

// RemoveEquipment drops an equipment line item.
func (l *Ledger) RemoveEquipment(id int64) {
	for i := range l.Equipment {
		if l.Equipment[i].ID == id {
			l.Equipment = append(l.Equipment[:i], l.Equipment[i+1:]...)
			return
		}
	}
}

// AddService appends a service line item and returns its id.
func (l *Ledger) AddService(item LineItem) int64 {
	item.ID = l.NextLineID
	l.NextLineID++
	item.Subcategory = "" // services carry no subcategory
	l.Services = append(l.Services, item)
	return item.ID
}

// UpdateService replaces a service line item in place.
func (l *Ledger) UpdateService(id int64, item LineItem) error {
	for i := range l.Services {
		if l.Services[i].ID == id {
			item.ID = id
			item.Subcategory = ""
			l.Services[i] = item
			return nil
		}
	}
	return ErrLineItemNotFound
}

// RemoveService drops a service line item.
func (l *Ledger) RemoveService(id int64) {
	for i := range l.Services {
		if l.Services[i].ID == id {
			l.Services = append(l.Services[:i], l.Services[i+1:]...)
			return
		}
	}
}

// SetLossCharge sets the separately tracked equipment loss/breakage charge.
func (l *Ledger) SetLossCharge(charge float64) {
	if charge < 0 {
		charge = 0
	}
	l.LossCharge = charge
}

// DishesTotal sums resolved price × quantity over every selected dish,
// catalog and custom alike.
func (l *Ledger) DishesTotal() float64 {
	var total float64
	for _, s := range l.Dishes {
		total += s.Amount()
	}
	return total
}

// RegularDishesTotal sums catalog dishes only. Discounts apply to catalog
// dishes, never to custom ones, so this is the menu discount base.
func (l *Ledger) RegularDishesTotal() float64 {
	var total float64
	for _, s := range l.Dishes {
		if s.Dish.Kind == KindCatalog {
			total += s.Amount()
		}
	}
	return total
}

// TotalWeight returns the summed output weight in grams over non-drink
// dishes.
func (l *Ledger) TotalWeight() float64 {
	var total float64
	for _, s := range l.Dishes {
		if units.IsDrinkCategory(s.Dish.Category) {
			continue
		}
		total += units.Normalize(s.Measure(), s.Dish.Unit) * clampQty(s.Quantity)
	}
	return total
}

// TotalVolume returns the summed drink volume in millilitres.
func (l *Ledger) TotalVolume() float64 {
	var total float64
	for _, s := range l.Dishes {
		if !units.IsDrinkCategory(s.Dish.Category) {
			continue
		}
		total += units.Normalize(s.Measure(), s.Dish.Unit) * clampQty(s.Quantity)
	}
	return total
}

// EquipmentItemsTotal sums equipment line items without the loss charge.
func (l *Ledger) EquipmentItemsTotal() float64 {
	var total float64
	for _, li := range l.Equipment {
		total += li.Amount()
	}
	return total
}

// EquipmentTotal is equipment line items plus the loss/breakage charge.
func (l *Ledger) EquipmentTotal() float64 {
	return l.EquipmentItemsTotal() + l.LossCharge
}

// ServicesTotal sums service line items.
func (l *Ledger) ServicesTotal() float64 {
	var total float64
	for _, li := range l.Services {
		total += li.Amount()
	}
	return total
}

// PerGuestWeight divides total weight by the guest count, 0 when the guest
// count is not positive.
func (l *Ledger) PerGuestWeight(guests int) float64 {
	if guests <= 0 {
		return 0
	}
	return l.TotalWeight() / float64(guests)
}

// PerGuestVolume divides drink volume by the guest count, 0 when the guest
// count is not positive.
func (l *Ledger) PerGuestVolume(guests int) float64 {
	if guests <= 0 {
		return 0
	}
	return l.TotalVolume() / float64(guests)
}

// CatalogSelections returns selections backed by the catalog.
func (l *Ledger) CatalogSelections() []*Selection {
	out := make([]*Selection, 0, len(l.Dishes))
	for _, s := range l.Dishes {
		if s.Dish.Kind == KindCatalog {
			out = append(out, s)
		}
	}
	return out
}

// CustomSelections returns user-authored selections.
func (l *Ledger) CustomSelections() []*Selection {
	out := make([]*Selection, 0)
	for _, s := range l.Dishes {
		if s.Dish.Kind == KindCustom {
			out = append(out, s)
		}
	}
	return out
}

func clampQty(q int) float64 {
	if q < 0 {
		return 0
	}
	return float64(q)
}

func clampPrice(p float64) float64 {
	if p < 0 {
		return 0
	}
	return p
}
