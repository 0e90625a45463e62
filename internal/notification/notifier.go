// Package notification delivers trigger events to external channels
// (the mailer service webhook, Telegram, logs).
//
// Delivery is fire-and-forget: a failed send is logged and dropped. The
// alert's trigger state is recorded before notification, so a delivery
// failure never re-triggers the alert or causes a re-notification storm.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"stockwatch/internal/model"
)

// LogNotifier logs trigger events (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, event model.TriggerEvent) error {
	slog.Info("alert triggered",
		"alert_id", event.AlertID,
		"symbol", event.Symbol,
		"metric", event.MetricValue,
		"target", event.TargetValue,
		"condition", event.Condition,
		"reason", event.Reason,
	)
	return nil
}

// Multi fans one event out to several notifiers. Each backend's failure
// is logged and swallowed so one broken channel doesn't mute the others.
type Multi struct {
	notifiers []model.Notifier

	// OnFailure is called once per failed backend (for metrics).
	OnFailure func()
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...model.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, event model.TriggerEvent) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			slog.Error("notification delivery failed",
				"alert_id", event.AlertID,
				"notifier", fmt.Sprintf("%T", n),
				"error", err,
			)
			if m.OnFailure != nil {
				m.OnFailure()
			}
		}
	}
	return nil
}
