package model

import (
	"encoding/json"
	"time"
)

// TriggerEvent is emitted once per alert trigger and handed to the
// notification sink. It is an output, not state owned by the engine.
type TriggerEvent struct {
	AlertID     string    `json:"alert_id"`
	OwnerID     string    `json:"owner_id"`
	Symbol      string    `json:"symbol"`
	MetricValue float64   `json:"metric_value"`
	TargetValue float64   `json:"target_value"`
	Condition   Condition `json:"condition"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// JSON returns the JSON-encoded event (ignoring errors for hot-path usage).
func (e *TriggerEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// TickStats summarizes one scheduler tick for the status endpoint.
type TickStats struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	SymbolsProcessed int           `json:"symbols_processed"`
	SymbolsSkipped   int           `json:"symbols_skipped"`
	AlertsEvaluated  int           `json:"alerts_evaluated"`
	AlertsTriggered  int           `json:"alerts_triggered"`
	InsufficientData int           `json:"insufficient_data"`
	Errors           []string      `json:"errors,omitempty"`
}
