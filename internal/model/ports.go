package model

import (
	"context"
	"errors"
	"time"
)

// ── Collaborator Port Interfaces ──
// These interfaces decouple the engine from concrete collaborators
// (market-data API, alert database, notification channels, cache).
// Each implementation satisfies one or more of these interfaces.

// Price source error classes. Implementations wrap one of these so the
// scheduler can distinguish retry-next-tick from flag-and-skip.
var (
	// ErrTransient marks timeouts and rate limits: the symbol is skipped
	// this tick and retried on the next one.
	ErrTransient = errors.New("price source: transient failure")

	// ErrFatal marks unknown or invalid symbols: the alert is flagged for
	// user attention and the symbol skipped until its definition changes.
	ErrFatal = errors.New("price source: symbol rejected")
)

// PriceSource provides quotes and historical bars for symbols.
type PriceSource interface {
	// GetQuote fetches the latest market snapshot for a symbol.
	GetQuote(ctx context.Context, symbol string) (Quote, error)

	// GetHistory fetches at least bars historical daily bars for a
	// symbol, ordered oldest first.
	GetHistory(ctx context.Context, symbol string, bars int) (PriceSeries, error)
}

// AlertStore persists alert definitions. The engine is the sole mutator
// of trigger state; owners mutate definition fields concurrently.
type AlertStore interface {
	// ListActiveAlerts returns alerts with IsActive set, including ones
	// currently cooling down or expired — the scheduler applies the
	// effective-status filter itself.
	ListActiveAlerts(ctx context.Context) ([]AlertDefinition, error)

	// UpdateTriggerState records a trigger. The update is optimistic:
	// it only applies if the stored trigger count still equals prevCount,
	// so engine writes never clobber concurrent owner edits.
	UpdateTriggerState(ctx context.Context, alertID string, prevCount int, triggeredAt time.Time) error

	// FlagSymbolIssue marks every alert on the symbol with a data issue
	// so subsequent ticks skip it.
	FlagSymbolIssue(ctx context.Context, symbol, issue string) error
}

// Notifier delivers trigger events. Delivery is fire-and-forget from the
// engine's perspective: failures are logged, never retried by
// re-triggering the alert.
type Notifier interface {
	Notify(ctx context.Context, event TriggerEvent) error
}

// IndicatorCache caches per-symbol computed snapshots between requests.
// It is best-effort: a miss or error means recompute.
type IndicatorCache interface {
	// Get returns the cached payload for a symbol if it is younger than
	// the freshness window; ok is false otherwise.
	Get(ctx context.Context, symbol string) (data []byte, ok bool)

	// Put stores the payload for a symbol under the freshness window.
	Put(ctx context.Context, symbol string, data []byte)
}
