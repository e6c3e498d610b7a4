// Package formats manages the named sub-formats of an event (e.g. "Welcome
// drink", "Банкет"), each with its own guest count, time window and dish
// selection.
package formats

import (
	"errors"

	"github.com/mkrivosheev/kp-builder/internal/ledger"
)

var ErrFormatNotFound = errors.New("event format not found")

// ServiceGroup is the proposal-level service group. Box delivery and
// catering are mutually exclusive; an empty group means none chosen yet.
type ServiceGroup string

const (
	GroupNone     ServiceGroup = ""
	GroupBox      ServiceGroup = "box"
	GroupCatering ServiceGroup = "catering"
)

// Valid reports whether the value is one of the known groups.
func (g ServiceGroup) Valid() bool {
	return g == GroupNone || g == GroupBox || g == GroupCatering
}

// Format is one event sub-format. Ids are locally assigned and kept dense
// 0..n-1 for the lifetime of the session.
type Format struct {
	ID        int              `json:"id"`
	Name      string           `json:"name"`
	TimeRange string           `json:"time_window,omitempty"`
	Guests    int              `json:"guest_count"`
	Group     ServiceGroup     `json:"group,omitempty"`
	DishKeys  []ledger.DishKey `json:"dish_keys"`
}

// HasDish reports membership of a dish key in the format's selection.
func (f *Format) HasDish(key ledger.DishKey) bool {
	for _, k := range f.DishKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Registry holds the ordered formats of one proposal draft.
type Registry struct {
	Formats []*Format `json:"formats"`
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{Formats: make([]*Format, 0)}
}

// Create appends a format with the next sequential id.
func (r *Registry) Create(name string) *Format {
	f := &Format{
		ID:       len(r.Formats),
		Name:     name,
		DishKeys: make([]ledger.DishKey, 0),
	}
	r.Formats = append(r.Formats, f)
	return f
}

// Get returns a format by id, or nil.
func (r *Registry) Get(id int) *Format {
	if id < 0 || id >= len(r.Formats) {
		return nil
	}
	return r.Formats[id]
}

// Rename sets a format's display name.
func (r *Registry) Rename(id int, name string) error {
	f := r.Get(id)
	if f == nil {
		return ErrFormatNotFound
	}
	f.Name = name
	return nil
}

// SetTimeRange sets a format's time window string.
func (r *Registry) SetTimeRange(id int, timeRange string) error {
	f := r.Get(id)
	if f == nil {
		return ErrFormatNotFound
	}
	f.TimeRange = timeRange
	return nil
}

// SetGuests sets a format's guest count.
func (r *Registry) SetGuests(id int, guests int) error {
	f := r.Get(id)
	if f == nil {
		return ErrFormatNotFound
	}
	if guests < 0 {
		guests = 0
	}
	f.Guests = guests
	return nil
}

// SetGroup tags a format with a service group.
func (r *Registry) SetGroup(id int, group ServiceGroup) error {
	f := r.Get(id)
	if f == nil {
		return ErrFormatNotFound
	}
	f.Group = group
	return nil
}

// AddDish adds a dish key to a format's selection, keeping insertion order
// and ignoring duplicates.
func (r *Registry) AddDish(id int, key ledger.DishKey) error {
	f := r.Get(id)
	if f == nil {
		return ErrFormatNotFound
	}
	if !f.HasDish(key) {
		f.DishKeys = append(f.DishKeys, key)
	}
	return nil
}

// RemoveDish drops a dish key from a format's selection.
func (r *Registry) RemoveDish(id int, key ledger.DishKey) error {
	f := r.Get(id)
	if f == nil {
		return ErrFormatNotFound
	}
	for i, k := range f.DishKeys {
		if k == key {
			f.DishKeys = append(f.DishKeys[:i], f.DishKeys[i+1:]...)
			return nil
		}
	}
	return nil
}

// Delete removes a format and re-sequences the remaining ids so they stay
// dense 0..n-1.
func (r *Registry) Delete(id int) error {
	if r.Get(id) == nil {
		return ErrFormatNotFound
	}
	r.Formats = append(r.Formats[:id], r.Formats[id+1:]...)
	for i, f := range r.Formats {
		f.ID = i
	}
	return nil
}

// DropDish removes a dish from every format, used when the dish leaves the
// ledger.
func (r *Registry) DropDish(key ledger.DishKey) {
	for _, f := range r.Formats {
		_ = r.RemoveDish(f.ID, key)
	}
}

// GuestSum sums guest counts across formats. Used as the fallback guest
// figure in the output weight/volume context and when persisting formats.
func (r *Registry) GuestSum() int {
	var sum int
	for _, f := range r.Formats {
		sum += f.Guests
	}
	return sum
}

// GuestMax returns the maximum guest count across formats. Used as the
// fallback single guest figure for per-person pricing. The sum-vs-max split
// mirrors the two legacy display contexts; see DESIGN.md before unifying.
func (r *Registry) GuestMax() int {
	var max int
	for _, f := range r.Formats {
		if f.Guests > max {
			max = f.Guests
		}
	}
	return max
}

// ApplyGroup reconciles formats with a newly chosen proposal-level group:
// untagged formats are relabeled to the new group, formats tagged with the
// opposing group are dropped (ids re-sequenced).
func (r *Registry) ApplyGroup(group ServiceGroup) {
	if group == GroupNone {
		return
	}
	kept := r.Formats[:0]
	for _, f := range r.Formats {
		if f.Group != GroupNone && f.Group != group {
			continue
		}
		f.Group = group
		kept = append(kept, f)
	}
	r.Formats = kept
	for i, f := range r.Formats {
		f.ID = i
	}
}

// Reconcile merges every per-format selection with the unscoped selection
// into one ordered key set without duplicates. Every dish appearing
// anywhere becomes exactly one submission line item.
func (r *Registry) Reconcile(unscoped []ledger.DishKey) []ledger.DishKey {
	seen := make(map[ledger.DishKey]bool)
	out := make([]ledger.DishKey, 0, len(unscoped))
	for _, k := range unscoped {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, f := range r.Formats {
		for _, k := range f.DishKeys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
