package alert

import (
	"errors"
	"testing"
	"time"

	"stockwatch/internal/model"
)

func baseAlert() *model.AlertDefinition {
	return &model.AlertDefinition{
		ID: "a1", OwnerID: "u1", Symbol: "XYZ",
		Type: model.AlertPrice, Condition: model.CondAbove, TargetValue: 25,
		IsActive: true, Cooldown: 60 * time.Minute,
	}
}

func TestStatus_Precedence(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	triggered := now.Add(-10 * time.Minute)

	a := baseAlert()
	if got := Status(a, now); got != model.StatusActive {
		t.Errorf("plain alert: got %v, want active", got)
	}

	a.LastTriggered = &triggered
	if got := Status(a, now); got != model.StatusCoolingDown {
		t.Errorf("within cooldown: got %v, want cooling_down", got)
	}

	// Inactive beats cooldown.
	a.IsActive = false
	if got := Status(a, now); got != model.StatusInactive {
		t.Errorf("paused while cooling: got %v, want inactive", got)
	}

	// Expiry beats everything, even expiresAt just one second in the past.
	a.ExpiresAt = &past
	a.IsActive = true
	if got := Status(a, now); got != model.StatusExpired {
		t.Errorf("expired: got %v, want expired", got)
	}
}

func TestStatus_CooldownElapsed(t *testing.T) {
	// Triggered at T; at T+30m still cooling, at T+61m active again.
	trigAt := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	a := baseAlert()
	a.LastTriggered = &trigAt

	if got := Status(a, trigAt.Add(30*time.Minute)); got != model.StatusCoolingDown {
		t.Errorf("T+30m: got %v, want cooling_down", got)
	}
	if got := Status(a, trigAt.Add(61*time.Minute)); got != model.StatusActive {
		t.Errorf("T+61m: got %v, want active", got)
	}
}

func TestEvaluable_FiltersDataIssues(t *testing.T) {
	now := time.Now()
	a := baseAlert()
	if !Evaluable(a, now) {
		t.Fatal("healthy active alert must be evaluable")
	}
	a.DataIssue = "symbol not found"
	if Evaluable(a, now) {
		t.Error("flagged symbol must be skipped")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.AlertDefinition)
		valid  bool
	}{
		{"valid price alert", func(a *model.AlertDefinition) {}, true},
		{"missing symbol", func(a *model.AlertDefinition) { a.Symbol = "" }, false},
		{"missing owner", func(a *model.AlertDefinition) { a.OwnerID = "" }, false},
		{"unknown condition", func(a *model.AlertDefinition) { a.Condition = "near" }, false},
		{"negative cooldown", func(a *model.AlertDefinition) { a.Cooldown = -time.Minute }, false},
		{"zero price target", func(a *model.AlertDefinition) { a.TargetValue = 0 }, false},
		{"negative change target ok", func(a *model.AlertDefinition) {
			a.Type = model.AlertChange
			a.TargetValue = -5
		}, true},
		{"technical without indicator", func(a *model.AlertDefinition) {
			a.Type = model.AlertTechnical
			a.Indicator = ""
		}, false},
		{"technical with indicator", func(a *model.AlertDefinition) {
			a.Type = model.AlertTechnical
			a.Indicator = model.IndicatorRSI
			a.TargetValue = 70
		}, true},
		{"indicator on price alert", func(a *model.AlertDefinition) {
			a.Indicator = model.IndicatorRSI
		}, false},
		{"unknown indicator", func(a *model.AlertDefinition) {
			a.Type = model.AlertTechnical
			a.Indicator = "stochastic"
		}, false},
		{"unknown alert type", func(a *model.AlertDefinition) { a.Type = "news" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := baseAlert()
			tt.mutate(a)
			err := Validate(a)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidDefinition) {
					t.Errorf("error must wrap ErrInvalidDefinition, got %v", err)
				}
			}
		})
	}
}
