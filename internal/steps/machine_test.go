package steps

import (
	"testing"

	"github.com/mkrivosheev/kp-builder/internal/formats"
)

func validFirstStep() GateState {
	return GateState{
		ClientName: "ООО Ромашка",
		EventDate:  "2026-09-12",
		Group:      formats.GroupCatering,
	}
}

func TestForwardBlockedWithoutClientName(t *testing.T) {
	m := New()
	st := validFirstStep()
	st.ClientName = ""

	violations := m.GoTo(DishSelection, st)
	if len(violations) == 0 {
		t.Fatal("expected violations for empty client name")
	}
	if m.Current() != ClientAndEvent {
		t.Errorf("state changed to %v on failed gate", m.Current())
	}

	// supplying name + date + group unblocks the transition
	if v := m.GoTo(DishSelection, validFirstStep()); len(v) != 0 {
		t.Fatalf("unexpected violations: %v", v)
	}
	if m.Current() != DishSelection {
		t.Errorf("Current() = %v, want DishSelection", m.Current())
	}
}

func TestOneMessagePerViolatedRule(t *testing.T) {
	m := New()
	violations := m.GoTo(DishSelection, GateState{})
	if len(violations) != 3 {
		t.Errorf("expected 3 violations (name, date, group), got %d: %v", len(violations), violations)
	}
}

func TestExistingClientNeedsReference(t *testing.T) {
	m := New()
	st := validFirstStep()
	st.ExistingClient = true

	violations := m.GoTo(DishSelection, st)
	if len(violations) != 1 || violations[0].Field != "client_id" {
		t.Errorf("expected one client_id violation, got %v", violations)
	}

	st.ClientID = 5
	if v := m.GoTo(DishSelection, st); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestDishSelectionGate(t *testing.T) {
	tests := []struct {
		name       string
		st         GateState
		wantBlocked bool
	}{
		{
			name:        "no dishes at all",
			st:          GateState{},
			wantBlocked: true,
		},
		{
			name:        "catalog dish present",
			st:          GateState{HasCatalogDish: true},
			wantBlocked: false,
		},
		{
			name:        "named custom dish present",
			st:          GateState{CustomDishNames: []string{"Торт"}},
			wantBlocked: false,
		},
		{
			name:        "unnamed custom dish blocks",
			st:          GateState{HasCatalogDish: true, CustomDishNames: []string{""}},
			wantBlocked: true,
		},
		{
			name:        "only unnamed custom dish blocks twice over",
			st:          GateState{CustomDishNames: []string{"  "}},
			wantBlocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Machine{Step: DishSelection}
			st := tt.st
			st.ClientName = "Клиент"
			st.EventDate = "2026-09-12"
			st.Group = formats.GroupBox

			violations := m.GoTo(EquipmentCalc, st)
			if blocked := len(violations) > 0; blocked != tt.wantBlocked {
				t.Errorf("blocked = %v, want %v (violations %v)", blocked, tt.wantBlocked, violations)
			}
		})
	}
}

func TestBackwardAlwaysAllowed(t *testing.T) {
	m := &Machine{Step: Preview}
	if v := m.GoTo(ClientAndEvent, GateState{}); len(v) != 0 {
		t.Errorf("backward transition returned violations: %v", v)
	}
	if m.Current() != ClientAndEvent {
		t.Errorf("Current() = %v, want ClientAndEvent", m.Current())
	}
}

func TestForwardSkipValidatesEveryGate(t *testing.T) {
	m := New()
	st := validFirstStep() // dish selection gate not satisfied

	violations := m.GoTo(Constructor, st)
	if len(violations) == 0 {
		t.Fatal("expected dish selection violations when skipping ahead")
	}
	if m.Current() != ClientAndEvent {
		t.Errorf("state changed to %v on failed multi-step move", m.Current())
	}

	st.HasCatalogDish = true
	if v := m.GoTo(Constructor, st); len(v) != 0 {
		t.Fatalf("unexpected violations: %v", v)
	}
	if m.Current() != Constructor {
		t.Errorf("Current() = %v, want Constructor", m.Current())
	}
}

func TestSubmissionViolations(t *testing.T) {
	st := GateState{}
	violations := SubmissionViolations(st)
	if len(violations) != 1 || violations[0].Field != "template_id" {
		t.Errorf("expected template violation, got %v", violations)
	}

	st.TemplateID = 2
	st.SendEmail = true
	violations = SubmissionViolations(st)
	if len(violations) != 1 || violations[0].Field != "client_email" {
		t.Errorf("expected client_email violation, got %v", violations)
	}

	st.ClientEmail = "client@example.com"
	if v := SubmissionViolations(st); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}
