package models

import "github.com/mkrivosheev/kp-builder/internal/units"

// CatalogDish represents a dish from the catalog service.
// Catalog dishes are read-only reference data; the builder may only
// override price and measure locally, never edit the dish itself.
type CatalogDish struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Measure     string     `json:"measure"` // "250", "1,5" or dual "150/75"
	Unit        units.Unit `json:"unit"`
	Price       float64    `json:"price"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
}
