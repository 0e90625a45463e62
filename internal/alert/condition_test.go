package alert

import (
	"testing"
	"time"

	"stockwatch/internal/model"
)

func f(v float64) *float64 { return &v }

func TestEvaluateCondition_Table(t *testing.T) {
	tests := []struct {
		name    string
		cond    model.Condition
		current float64
		target  float64
		prev    *float64
		eps     float64
		want    Outcome
	}{
		{"above true", model.CondAbove, 30, 25, nil, EpsilonPrice, OutcomeTrigger},
		{"above equal is false", model.CondAbove, 25, 25, nil, EpsilonPrice, OutcomeNoTrigger},
		{"below true", model.CondBelow, 20, 25, nil, EpsilonPrice, OutcomeTrigger},
		{"below false", model.CondBelow, 26, 25, nil, EpsilonPrice, OutcomeNoTrigger},
		{"equals within price epsilon", model.CondEquals, 25.005, 25, nil, EpsilonPrice, OutcomeTrigger},
		{"equals outside price epsilon", model.CondEquals, 25.02, 25, nil, EpsilonPrice, OutcomeNoTrigger},
		{"equals indicator epsilon tighter", model.CondEquals, 70.005, 70, nil, EpsilonIndicator, OutcomeNoTrigger},
		{"equals within indicator epsilon", model.CondEquals, 70.0005, 70, nil, EpsilonIndicator, OutcomeTrigger},
		{"crosses_above fires", model.CondCrossesAbove, 20, 15, f(10), EpsilonPrice, OutcomeTrigger},
		{"crosses_above from exactly target", model.CondCrossesAbove, 20, 15, f(15), EpsilonPrice, OutcomeTrigger},
		{"crosses_above already above", model.CondCrossesAbove, 20, 15, f(16), EpsilonPrice, OutcomeNoTrigger},
		{"crosses_above no prev", model.CondCrossesAbove, 20, 15, nil, EpsilonPrice, OutcomeInsufficientData},
		{"crosses_below fires", model.CondCrossesBelow, 10, 15, f(20), EpsilonPrice, OutcomeTrigger},
		{"crosses_below already below", model.CondCrossesBelow, 10, 15, f(12), EpsilonPrice, OutcomeNoTrigger},
		{"crosses_below no prev", model.CondCrossesBelow, 10, 15, nil, EpsilonPrice, OutcomeInsufficientData},
		{"unknown condition", model.Condition("between"), 10, 15, nil, EpsilonPrice, OutcomeInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateCondition(tt.cond, tt.current, tt.target, tt.prev, tt.eps)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrossover_Idempotent(t *testing.T) {
	// Same (prev, current) pair twice in a row: same answer both times.
	first := EvaluateCondition(model.CondCrossesAbove, 20, 15, f(10), EpsilonPrice)
	second := EvaluateCondition(model.CondCrossesAbove, 20, 15, f(10), EpsilonPrice)
	if first != second {
		t.Errorf("crossover not idempotent: %v then %v", first, second)
	}
}

func TestCrossover_TwoBarScenario(t *testing.T) {
	// Series [10, 20], target 15: first evaluation (prev=10, current=20)
	// fires; re-evaluating with no new bar (prev=20, current=20) does not.
	if got := EvaluateCondition(model.CondCrossesAbove, 20, 15, f(10), EpsilonPrice); got != OutcomeTrigger {
		t.Errorf("first evaluation: got %v, want trigger", got)
	}
	if got := EvaluateCondition(model.CondCrossesAbove, 20, 15, f(20), EpsilonPrice); got != OutcomeNoTrigger {
		t.Errorf("re-evaluation without new bar: got %v, want no_trigger", got)
	}
}

func TestEvaluate_InsufficientMetric(t *testing.T) {
	a := &model.AlertDefinition{
		Symbol: "XYZ", OwnerID: "u1",
		Type: model.AlertTechnical, Indicator: model.IndicatorRSI,
		Condition: model.CondAbove, TargetValue: 70,
		IsActive: true, Cooldown: model.DefaultCooldown,
	}
	d := Evaluate(a, nil, nil, time.Now())
	if d.Outcome != OutcomeInsufficientData {
		t.Errorf("nil metric: got %v, want insufficient_data", d.Outcome)
	}
	if d.Reason == "" {
		t.Error("decision must carry a reason for the test-alert path")
	}
}

func TestEvaluate_SkipsNonActive(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)

	paused := &model.AlertDefinition{
		Symbol: "XYZ", OwnerID: "u1", Type: model.AlertPrice,
		Condition: model.CondAbove, TargetValue: 25, IsActive: false,
	}
	d := Evaluate(paused, f(30), nil, now)
	if d.Outcome != OutcomeNoTrigger || d.Status != model.StatusInactive {
		t.Errorf("paused alert: got %+v", d)
	}

	// Expiry dominates even with a satisfied condition and active flag.
	expired := &model.AlertDefinition{
		Symbol: "XYZ", OwnerID: "u1", Type: model.AlertPrice,
		Condition: model.CondAbove, TargetValue: 25, IsActive: true,
		ExpiresAt: &past,
	}
	d = Evaluate(expired, f(30), nil, now)
	if d.Outcome != OutcomeNoTrigger || d.Status != model.StatusExpired {
		t.Errorf("expired alert: got %+v", d)
	}
}

func TestEvaluate_Triggers(t *testing.T) {
	a := &model.AlertDefinition{
		Symbol: "XYZ", OwnerID: "u1", Type: model.AlertPrice,
		Condition: model.CondAbove, TargetValue: 25, IsActive: true,
		Cooldown: model.DefaultCooldown,
	}
	d := Evaluate(a, f(30), nil, time.Now())
	if !d.Triggered() {
		t.Fatalf("price 30 above 25: got %+v", d)
	}
	if d.MetricValue != 30 {
		t.Errorf("metric value: got %v, want 30", d.MetricValue)
	}
}
