package model

import (
	"time"
)

// AlertType selects which metric an alert watches.
type AlertType string

const (
	AlertPrice     AlertType = "price"
	AlertVolume    AlertType = "volume"
	AlertChange    AlertType = "change"
	AlertTechnical AlertType = "technical"
)

// IndicatorType selects the technical metric for AlertTechnical alerts.
type IndicatorType string

const (
	IndicatorRSI       IndicatorType = "rsi"
	IndicatorSMA       IndicatorType = "sma"
	IndicatorEMA       IndicatorType = "ema"
	IndicatorMACD      IndicatorType = "macd"
	IndicatorBollinger IndicatorType = "bollinger"
)

// Condition is the comparison applied between metric and target.
type Condition string

const (
	CondAbove        Condition = "above"
	CondBelow        Condition = "below"
	CondEquals       Condition = "equals"
	CondCrossesAbove Condition = "crosses_above"
	CondCrossesBelow Condition = "crosses_below"
)

// AlertStatus is the effective lifecycle state of an alert at a point in
// time. It is derived, never stored: see alert.Status.
type AlertStatus string

const (
	StatusActive      AlertStatus = "active"
	StatusInactive    AlertStatus = "inactive"
	StatusCoolingDown AlertStatus = "cooling_down"
	StatusExpired     AlertStatus = "expired"
)

// DefaultCooldown applies when an alert is created without one.
const DefaultCooldown = 60 * time.Minute

// AlertDefinition is a user-defined threshold alert on one symbol.
//
// Definition fields are mutated by the owner through the management API;
// TriggerCount and LastTriggered are mutated only by the engine through
// AlertStore.UpdateTriggerState.
type AlertDefinition struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Type      AlertType `db:"alert_type" json:"alert_type"`
	// Indicator is required iff Type == AlertTechnical.
	Indicator   IndicatorType `db:"indicator_type" json:"indicator_type,omitempty"`
	Condition   Condition     `db:"condition" json:"condition"`
	TargetValue float64       `db:"target_value" json:"target_value"`

	Cooldown      time.Duration `db:"cooldown_ns" json:"cooldown"`
	IsActive      bool          `db:"is_active" json:"is_active"`
	TriggerCount  int           `db:"trigger_count" json:"trigger_count"`
	LastTriggered *time.Time    `db:"last_triggered" json:"last_triggered,omitempty"`
	ExpiresAt     *time.Time    `db:"expires_at" json:"expires_at,omitempty"`

	// DataIssue is set when the price source reported the symbol as
	// invalid; the scheduler skips the symbol until the definition changes.
	DataIssue string `db:"data_issue" json:"data_issue,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InCooldown reports whether the alert is still within its cooldown
// window as of now.
func (a *AlertDefinition) InCooldown(now time.Time) bool {
	if a.LastTriggered == nil {
		return false
	}
	return now.Before(a.LastTriggered.Add(a.Cooldown))
}

// Expired reports whether the alert's expiry has passed as of now.
// Expiry is one-way and suppresses evaluation; it never deletes.
func (a *AlertDefinition) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
