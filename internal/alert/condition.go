// Package alert decides whether alert definitions fire.
//
// The condition evaluator maps (current, condition, target, previous) to
// a boolean outcome; the lifecycle functions derive an alert's effective
// status from wall-clock time. Both are pure — no hidden state, so a
// crossover evaluated twice with the same sample pair yields the same
// answer both times.
package alert

import (
	"fmt"
	"math"
	"time"

	"stockwatch/internal/model"
)

// Outcome is the evaluator verdict. InsufficientData is deliberately
// distinct from NoTrigger: an alert must never fire on absent data, and
// the scheduler must be able to tell "condition not met" apart from
// "could not be checked" in logs and metrics.
type Outcome int

const (
	OutcomeNoTrigger Outcome = iota
	OutcomeTrigger
	OutcomeInsufficientData
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoTrigger:
		return "no_trigger"
	case OutcomeTrigger:
		return "trigger"
	case OutcomeInsufficientData:
		return "insufficient_data"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Equality tolerances for the "equals" condition.
const (
	// EpsilonPrice applies to price-like magnitudes (price, volume, change).
	EpsilonPrice = 0.01
	// EpsilonIndicator applies to dimensionless technical indicators.
	EpsilonIndicator = 0.001
)

// EpsilonFor returns the equality tolerance for an alert's metric.
func EpsilonFor(t model.AlertType) float64 {
	if t == model.AlertTechnical {
		return EpsilonIndicator
	}
	return EpsilonPrice
}

// EvaluateCondition applies one condition to a sample pair.
//
// Crossovers need both samples: with prev == nil they return
// InsufficientData, never a trigger. The source this engine replaces
// silently degraded a first-observation crossover to a plain above/below
// check; that behavior is intentionally NOT reproduced.
func EvaluateCondition(cond model.Condition, current, target float64, prev *float64, eps float64) Outcome {
	switch cond {
	case model.CondAbove:
		return verdict(current > target)
	case model.CondBelow:
		return verdict(current < target)
	case model.CondEquals:
		return verdict(math.Abs(current-target) < eps)
	case model.CondCrossesAbove:
		if prev == nil {
			return OutcomeInsufficientData
		}
		return verdict(*prev <= target && current > target)
	case model.CondCrossesBelow:
		if prev == nil {
			return OutcomeInsufficientData
		}
		return verdict(*prev >= target && current < target)
	default:
		// Unknown conditions are rejected at creation; if one reaches us
		// anyway, skip rather than guess.
		return OutcomeInsufficientData
	}
}

func verdict(triggered bool) Outcome {
	if triggered {
		return OutcomeTrigger
	}
	return OutcomeNoTrigger
}

// Decision is one evaluation result, including the effective status that
// produced it and a human-readable reason for the "test alert" path.
type Decision struct {
	Outcome     Outcome           `json:"outcome"`
	Status      model.AlertStatus `json:"status"`
	MetricValue float64           `json:"metric_value"`
	Reason      string            `json:"reason"`
}

// Triggered reports whether the decision fires the alert.
func (d Decision) Triggered() bool { return d.Outcome == OutcomeTrigger }

// Evaluate runs the full decision for one alert against a sample pair.
// current == nil means the metric could not be computed this cycle.
// Evaluate never mutates the alert; recording the trigger is the
// caller's job (AlertStore.UpdateTriggerState).
//
// Status checks run in fixed order — expiry, then active flag, then
// cooldown — every cycle, regardless of the alert's state last cycle.
func Evaluate(a *model.AlertDefinition, current, prev *float64, now time.Time) Decision {
	status := Status(a, now)
	if status != model.StatusActive {
		return Decision{
			Outcome: OutcomeNoTrigger,
			Status:  status,
			Reason:  fmt.Sprintf("alert is %s, not evaluated", status),
		}
	}

	if current == nil {
		return Decision{
			Outcome: OutcomeInsufficientData,
			Status:  status,
			Reason:  "metric could not be computed: insufficient data",
		}
	}

	out := EvaluateCondition(a.Condition, *current, a.TargetValue, prev, EpsilonFor(a.Type))
	d := Decision{Outcome: out, Status: status, MetricValue: *current}
	switch out {
	case OutcomeTrigger:
		d.Reason = fmt.Sprintf("%.4f %s %.4f", *current, a.Condition, a.TargetValue)
	case OutcomeInsufficientData:
		d.Reason = "crossover needs a previous sample; none available yet"
	default:
		d.Reason = fmt.Sprintf("condition %s %.4f not met (current %.4f)", a.Condition, a.TargetValue, *current)
	}
	return d
}
