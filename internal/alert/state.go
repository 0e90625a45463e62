package alert

import (
	"time"

	"stockwatch/internal/model"
)

// Status derives the alert's effective lifecycle state at now.
//
// Precedence is fixed: expired beats everything (one-way, wall-clock
// driven), then the owner's active flag, then cooldown. An alert inside
// its cooldown re-enters active once the window elapses — alerts are
// repeat-fire, not one-shot.
func Status(a *model.AlertDefinition, now time.Time) model.AlertStatus {
	if a.Expired(now) {
		return model.StatusExpired
	}
	if !a.IsActive {
		return model.StatusInactive
	}
	if a.InCooldown(now) {
		return model.StatusCoolingDown
	}
	return model.StatusActive
}

// Evaluable reports whether the scheduler should evaluate the alert this
// cycle. Paused, cooling-down and expired alerts are filtered out of the
// working set before any fetch or indicator work happens for them.
func Evaluable(a *model.AlertDefinition, now time.Time) bool {
	return Status(a, now) == model.StatusActive && a.DataIssue == ""
}
