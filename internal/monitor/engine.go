// Package monitor runs the periodic alert evaluation loop.
//
// Each tick: load the active alert set, group it by symbol, fetch each
// symbol's data exactly once through a bounded worker pool, compute the
// indicator snapshot, evaluate every alert on the symbol and record and
// notify triggers. One symbol's failure never aborts the tick.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stockwatch/internal/alert"
	"stockwatch/internal/indicator"
	"stockwatch/internal/logger"
	"stockwatch/internal/markethours"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
)

// Config holds the scheduler knobs.
type Config struct {
	// Interval between evaluation ticks.
	Interval time.Duration

	// TickTimeout bounds one tick; symbols not yet fetched when it
	// expires are abandoned until the next tick.
	TickTimeout time.Duration

	// MaxConcurrentFetches bounds parallel symbol fetches.
	MaxConcurrentFetches int

	// HistoryBars is how many daily bars to fetch per symbol. Must cover
	// the longest indicator lookback (50-day SMA) plus the extra bar RSI
	// needs.
	HistoryBars int

	// MarketHoursOnly gates ticks on the trading session when set.
	MarketHoursOnly bool
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = c.Interval
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = 8
	}
	if c.HistoryBars < 60 {
		c.HistoryBars = 60
	}
	return c
}

// Engine evaluates alerts on a fixed schedule. Collaborators are
// injected as interfaces; cache and metrics may be nil.
type Engine struct {
	cfg      Config
	source   model.PriceSource
	store    model.AlertStore
	notifier model.Notifier
	cache    model.IndicatorCache
	session  markethours.Session
	metrics  *metrics.Metrics

	// OnTrigger, when set, receives every trigger event after it has been
	// recorded and notified (used for the websocket broadcast).
	OnTrigger func(model.TriggerEvent)

	// OnTick, when set, receives each completed tick's stats.
	OnTick func(model.TickStats)

	inFlight atomic.Bool

	mu       sync.RWMutex
	lastTick model.TickStats
}

// New creates an engine. source, store and notifier are required; cache
// and m may be nil.
func New(cfg Config, source model.PriceSource, store model.AlertStore, notifier model.Notifier, cache model.IndicatorCache, session markethours.Session, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		source:   source,
		store:    store,
		notifier: notifier,
		cache:    cache,
		session:  session,
		metrics:  m,
	}
}

// LastTick returns the most recently completed tick's stats.
func (e *Engine) LastTick() model.TickStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTick
}

// Run blocks until ctx is canceled, firing one tick per interval. The
// first tick runs immediately.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("monitor started",
		"interval", e.cfg.Interval,
		"tick_timeout", e.cfg.TickTimeout,
		"max_fetches", e.cfg.MaxConcurrentFetches,
		"history_bars", e.cfg.HistoryBars,
		"market_hours_only", e.cfg.MarketHoursOnly,
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.tickOnce(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return
		case t := <-ticker.C:
			e.tickOnce(ctx, t)
		}
	}
}

// tickOnce dispatches one tick unless the market is closed or the
// previous tick is still running. Returns false when the tick was not
// dispatched.
func (e *Engine) tickOnce(ctx context.Context, now time.Time) bool {
	if e.cfg.MarketHoursOnly && !e.session.IsOpen(now) {
		slog.Debug("tick suppressed", "status", e.session.StatusString(now))
		return false
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		if e.metrics != nil {
			e.metrics.TicksSkipped.Inc()
		}
		slog.Warn("tick skipped, previous tick still running")
		return false
	}

	go func() {
		defer e.inFlight.Store(false)

		tickCtx, cancel := context.WithTimeout(ctx, e.cfg.TickTimeout)
		defer cancel()
		tickCtx = logger.WithTraceID(tickCtx, logger.TickTraceID(now))

		stats := e.RunTick(tickCtx, now)

		e.mu.Lock()
		e.lastTick = stats
		e.mu.Unlock()
		if e.OnTick != nil {
			e.OnTick(stats)
		}
	}()
	return true
}

type symbolResult struct {
	processed    int
	skipped      int
	evaluated    int
	triggered    int
	insufficient int
	errs         []string
}

// RunTick executes one full evaluation cycle synchronously and returns
// its stats. now is the evaluation timestamp for every status and
// cooldown decision in the cycle.
func (e *Engine) RunTick(ctx context.Context, now time.Time) model.TickStats {
	start := time.Now()
	stats := model.TickStats{StartedAt: now}
	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
	}

	alerts, err := e.store.ListActiveAlerts(ctx)
	if err != nil {
		slog.Error("listing alerts failed", append([]any{"error", err}, logger.LogWithTrace(ctx)...)...)
		stats.Errors = append(stats.Errors, fmt.Sprintf("list alerts: %v", err))
		stats.Duration = time.Since(start)
		return stats
	}

	bySymbol := make(map[string][]model.AlertDefinition)
	for i := range alerts {
		if !alert.Evaluable(&alerts[i], now) {
			continue
		}
		bySymbol[alerts[i].Symbol] = append(bySymbol[alerts[i].Symbol], alerts[i])
	}

	slog.Info("tick started",
		append([]any{"alerts", len(alerts), "symbols", len(bySymbol)}, logger.LogWithTrace(ctx)...)...)

	sem := make(chan struct{}, e.cfg.MaxConcurrentFetches)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for sym, group := range bySymbol {
		wg.Add(1)
		go func(symbol string, group []model.AlertDefinition) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				// Tick deadline hit before this symbol got a worker slot.
				if e.metrics != nil {
					e.metrics.SymbolsAbandoned.Inc()
				}
				mu.Lock()
				stats.SymbolsSkipped++
				mu.Unlock()
				return
			}

			res := e.processSymbol(ctx, symbol, group, now)

			mu.Lock()
			stats.SymbolsProcessed += res.processed
			stats.SymbolsSkipped += res.skipped
			stats.AlertsEvaluated += res.evaluated
			stats.AlertsTriggered += res.triggered
			stats.InsufficientData += res.insufficient
			stats.Errors = append(stats.Errors, res.errs...)
			mu.Unlock()
		}(sym, group)
	}
	wg.Wait()

	stats.Duration = time.Since(start)
	if e.metrics != nil {
		e.metrics.TickDuration.Observe(stats.Duration.Seconds())
	}
	slog.Info("tick finished", append([]any{
		"duration", stats.Duration,
		"symbols_processed", stats.SymbolsProcessed,
		"symbols_skipped", stats.SymbolsSkipped,
		"alerts_evaluated", stats.AlertsEvaluated,
		"alerts_triggered", stats.AlertsTriggered,
		"insufficient_data", stats.InsufficientData,
	}, logger.LogWithTrace(ctx)...)...)
	return stats
}

// processSymbol fetches one symbol's data and evaluates its alert group.
func (e *Engine) processSymbol(ctx context.Context, symbol string, group []model.AlertDefinition, now time.Time) symbolResult {
	series, err := e.source.GetHistory(ctx, symbol, e.cfg.HistoryBars)
	if err != nil {
		return e.symbolFailure(ctx, symbol, "history", err)
	}
	quote, err := e.source.GetQuote(ctx, symbol)
	if err != nil {
		return e.symbolFailure(ctx, symbol, "quote", err)
	}

	// One snapshot for every alert on the symbol; the previous snapshot
	// (for crossovers) is the same series minus its last bar.
	cur := indicator.ComputeSet(series)
	prevSeries := model.PriceSeries{Symbol: symbol}
	if len(series.Bars) > 1 {
		prevSeries.Bars = series.Bars[:len(series.Bars)-1]
	}
	prev := indicator.ComputeSet(prevSeries)

	if e.cache != nil {
		if b, err := json.Marshal(cur); err == nil {
			e.cache.Put(ctx, symbol, b)
		}
	}
	if e.metrics != nil {
		e.metrics.SymbolsProcessed.Inc()
	}

	res := symbolResult{processed: 1}
	for i := range group {
		a := &group[i]
		current, previous := MetricPair(a, quote, series, cur, prev)
		d := alert.Evaluate(a, current, previous, now)
		res.evaluated++
		if e.metrics != nil {
			e.metrics.AlertsEvaluated.Inc()
		}

		switch {
		case d.Triggered():
			e.recordTrigger(ctx, a, d, now, &res)
		case d.Outcome == alert.OutcomeInsufficientData:
			res.insufficient++
			if e.metrics != nil {
				e.metrics.InsufficientData.Inc()
			}
			slog.Debug("alert not evaluable", append([]any{
				"alert_id", a.ID, "symbol", symbol, "reason", d.Reason,
			}, logger.LogWithTrace(ctx)...)...)
		}
	}
	return res
}

// recordTrigger persists the trigger then notifies. Persist-first: if
// the optimistic update loses (concurrent edit, duplicate tick), no
// notification goes out.
func (e *Engine) recordTrigger(ctx context.Context, a *model.AlertDefinition, d alert.Decision, now time.Time, res *symbolResult) {
	if err := e.store.UpdateTriggerState(ctx, a.ID, a.TriggerCount, now); err != nil {
		slog.Warn("trigger not recorded", append([]any{
			"alert_id", a.ID, "symbol", a.Symbol, "error", err,
		}, logger.LogWithTrace(ctx)...)...)
		return
	}

	res.triggered++
	if e.metrics != nil {
		e.metrics.AlertsTriggered.Inc()
	}

	event := model.TriggerEvent{
		AlertID:     a.ID,
		OwnerID:     a.OwnerID,
		Symbol:      a.Symbol,
		MetricValue: d.MetricValue,
		TargetValue: a.TargetValue,
		Condition:   a.Condition,
		Reason:      d.Reason,
		Timestamp:   now,
	}
	if err := e.notifier.Notify(ctx, event); err != nil {
		// Trigger state is already recorded; log and move on.
		if e.metrics != nil {
			e.metrics.NotifyFailures.Inc()
		}
		slog.Error("notification failed", append([]any{
			"alert_id", a.ID, "error", err,
		}, logger.LogWithTrace(ctx)...)...)
	}
	if e.OnTrigger != nil {
		e.OnTrigger(event)
	}
}

// symbolFailure classifies a fetch error. Fatal errors flag every alert
// on the symbol; transient ones just skip it until the next tick.
func (e *Engine) symbolFailure(ctx context.Context, symbol, stage string, err error) symbolResult {
	res := symbolResult{skipped: 1, errs: []string{fmt.Sprintf("%s %s: %v", symbol, stage, err)}}

	if errors.Is(err, model.ErrFatal) {
		if e.metrics != nil {
			e.metrics.FetchErrors.WithLabelValues("fatal").Inc()
		}
		slog.Warn("symbol rejected by source, flagging", append([]any{
			"symbol", symbol, "error", err,
		}, logger.LogWithTrace(ctx)...)...)
		if ferr := e.store.FlagSymbolIssue(ctx, symbol, err.Error()); ferr != nil {
			slog.Error("flagging symbol failed", "symbol", symbol, "error", ferr)
			res.errs = append(res.errs, fmt.Sprintf("%s flag: %v", symbol, ferr))
		}
		return res
	}

	if e.metrics != nil {
		e.metrics.FetchErrors.WithLabelValues("transient").Inc()
	}
	slog.Warn("symbol skipped this tick", append([]any{
		"symbol", symbol, "stage", stage, "error", err,
	}, logger.LogWithTrace(ctx)...)...)
	return res
}
