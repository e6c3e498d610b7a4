// Package units normalizes heterogeneous weight/volume encodings from the
// dish catalog into canonical scalars: grams for mass, millilitres for volume.
package units

import (
	"strings"

	"github.com/spf13/cast"
)

// Unit is a measurement unit tag as stored in the catalog.
type Unit string

const (
	Gram       Unit = "г"
	Kilogram   Unit = "кг"
	Milliliter Unit = "мл"
	Liter      Unit = "л"
	Piece      Unit = "шт"
)

// IsVolume reports whether the unit measures liquid volume.
func (u Unit) IsVolume() bool {
	return u == Milliliter || u == Liter
}

// Normalize converts a raw measure string plus unit into grams (mass) or
// millilitres (volume). The raw value may be a plain number ("250"), a
// number with a comma decimal separator ("1,5"), or a dual "A/B" encoding
// ("150/75") of which only the first component is used. Malformed or empty
// input normalizes to 0; unknown units pass through unconverted.
func Normalize(raw string, unit Unit) float64 {
	v := FirstComponent(raw)
	switch unit {
	case Kilogram, Liter:
		return v * 1000
	default:
		return v
	}
}

// FirstComponent parses the leading numeric component of a measure string.
// For "150/75" it returns 150. Anything unparseable yields 0 — partial
// drafts must stay computable, so parsing never fails.
func FirstComponent(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0
	}
	return v
}

// beverage category vocabulary; matching is case-insensitive and the
// "напит" stem catches compound names like "Безалкогольные напитки".
var drinkCategories = map[string]bool{
	"бар":       true,
	"коктейли":  true,
	"лимонады":  true,
	"морсы":     true,
	"соки":      true,
	"чай":       true,
	"кофе":      true,
	"вино":      true,
	"шампанское": true,
}

// IsDrinkCategory reports whether a dish category belongs to the beverage
// vocabulary. Drinks contribute to the volume output figure instead of the
// weight figure.
func IsDrinkCategory(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return false
	}
	if strings.Contains(c, "напит") {
		return true
	}
	return drinkCategories[c]
}
