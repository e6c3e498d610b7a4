package units

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		unit Unit
		want float64
	}{
		{
			name: "grams pass through",
			raw:  "250",
			unit: Gram,
			want: 250,
		},
		{
			name: "kilograms convert to grams",
			raw:  "1.2",
			unit: Kilogram,
			want: 1200,
		},
		{
			name: "millilitres pass through",
			raw:  "200",
			unit: Milliliter,
			want: 200,
		},
		{
			name: "litres convert to millilitres",
			raw:  "0.5",
			unit: Liter,
			want: 500,
		},
		{
			name: "dual encoding uses first component",
			raw:  "150/75",
			unit: Gram,
			want: 150,
		},
		{
			name: "dual encoding with kilograms",
			raw:  "1/0.5",
			unit: Kilogram,
			want: 1000,
		},
		{
			name: "comma decimal separator",
			raw:  "1,5",
			unit: Kilogram,
			want: 1500,
		},
		{
			name: "spaces around dual components",
			raw:  " 150 / 75 ",
			unit: Gram,
			want: 150,
		},
		{
			name: "empty input normalizes to zero",
			raw:  "",
			unit: Gram,
			want: 0,
		},
		{
			name: "garbage input normalizes to zero",
			raw:  "много",
			unit: Gram,
			want: 0,
		},
		{
			name: "unknown unit treated as already canonical",
			raw:  "3",
			unit: Piece,
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw, tt.unit); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %v, want %v", tt.raw, tt.unit, got, tt.want)
			}
		})
	}
}

func TestIsVolume(t *testing.T) {
	if !Milliliter.IsVolume() || !Liter.IsVolume() {
		t.Error("мл and л must be volume units")
	}
	if Gram.IsVolume() || Kilogram.IsVolume() || Piece.IsVolume() {
		t.Error("г, кг and шт must not be volume units")
	}
}

func TestIsDrinkCategory(t *testing.T) {
	tests := []struct {
		category string
		want     bool
	}{
		{"Напитки", true},
		{"Безалкогольные напитки", true},
		{"Бар", true},
		{"соки", true},
		{"Горячие закуски", false},
		{"Салаты", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsDrinkCategory(tt.category); got != tt.want {
			t.Errorf("IsDrinkCategory(%q) = %v, want %v", tt.category, got, tt.want)
		}
	}
}
