// Package steps implements the ordered builder workflow: seven phases with
// forward-validation gates and unrestricted backward navigation.
package steps

import (
	"strings"

	"github.com/mkrivosheev/kp-builder/internal/formats"
)

// Step is one phase of the proposal builder.
type Step int

const (
	ClientAndEvent Step = iota
	DishSelection
	EquipmentCalc
	ServiceCalc
	Constructor
	Preview
	TemplateAndSend
)

var stepNames = map[Step]string{
	ClientAndEvent:  "client_and_event",
	DishSelection:   "dish_selection",
	EquipmentCalc:   "equipment_calc",
	ServiceCalc:     "service_calc",
	Constructor:     "constructor",
	Preview:         "preview",
	TemplateAndSend: "template_and_send",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the step index is in range.
func (s Step) Valid() bool {
	return s >= ClientAndEvent && s <= TemplateAndSend
}

// Violation is one failed validation rule, scoped to a field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GateState is the slice of draft state the forward gates read.
type GateState struct {
	ClientName     string
	ExistingClient bool // user picked "existing client" mode
	ClientID       int64
	ClientEmail    string
	EventDate      string
	Group          formats.ServiceGroup

	HasCatalogDish  bool
	CustomDishNames []string // one entry per custom dish, possibly empty

	TemplateID int64
	SendEmail  bool
}

// Machine tracks the current step. The step index serializes with the
// draft so a restored session resumes where it left off.
type Machine struct {
	Step Step `json:"step"`
}

// New creates a machine positioned at the first step.
func New() *Machine {
	return &Machine{Step: ClientAndEvent}
}

// Current returns the current step.
func (m *Machine) Current() Step {
	return m.Step
}

// GoTo attempts a transition. Backward moves always succeed. Forward moves
// validate the gate of every step being left behind and return the full
// violation list; any violation aborts the move and leaves the current
// step unchanged.
func (m *Machine) GoTo(target Step, st GateState) []Violation {
	if !target.Valid() || target == m.Step {
		return nil
	}
	if target < m.Step {
		m.Step = target
		return nil
	}

	var violations []Violation
	for s := m.Step; s < target; s++ {
		violations = append(violations, gateLeaving(s, st)...)
	}
	if len(violations) > 0 {
		return violations
	}
	m.Step = target
	return nil
}

// gateLeaving returns the rules violated by leaving the given step forward.
func gateLeaving(s Step, st GateState) []Violation {
	var out []Violation
	switch s {
	case ClientAndEvent:
		if strings.TrimSpace(st.ClientName) == "" {
			out = append(out, Violation{Field: "client_name", Message: "client name is required"})
		}
		if strings.TrimSpace(st.EventDate) == "" {
			out = append(out, Violation{Field: "event_date", Message: "event date is required"})
		}
		if st.Group == formats.GroupNone {
			out = append(out, Violation{Field: "service_group", Message: "choose box delivery or catering"})
		}
		if st.ExistingClient && st.ClientID == 0 {
			out = append(out, Violation{Field: "client_id", Message: "select a client"})
		}
	case DishSelection:
		hasNamedCustom := false
		for _, name := range st.CustomDishNames {
			if strings.TrimSpace(name) == "" {
				out = append(out, Violation{Field: "custom_dish", Message: "every custom dish needs a name"})
			} else {
				hasNamedCustom = true
			}
		}
		if !st.HasCatalogDish && !hasNamedCustom {
			out = append(out, Violation{Field: "dishes", Message: "select at least one dish"})
		}
	}
	return out
}

// SubmissionViolations checks the rules that gate submission from the last
// step: a template must be chosen, and email delivery needs a client email.
func SubmissionViolations(st GateState) []Violation {
	var out []Violation
	if st.TemplateID == 0 {
		out = append(out, Violation{Field: "template_id", Message: "choose a template"})
	}
	if st.SendEmail && strings.TrimSpace(st.ClientEmail) == "" {
		out = append(out, Violation{Field: "client_email", Message: "client email is required for email delivery"})
	}
	return out
}
