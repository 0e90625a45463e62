// Package metrics exposes Prometheus metrics and a health endpoint for
// the alert monitor.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the alert engine.
type Metrics struct {
	TicksTotal   prometheus.Counter
	TicksSkipped prometheus.Counter
	TickDuration prometheus.Histogram

	SymbolsProcessed prometheus.Counter
	SymbolsAbandoned prometheus.Counter
	FetchErrors      *prometheus.CounterVec // labels: class=transient|fatal

	AlertsEvaluated  prometheus.Counter
	AlertsTriggered  prometheus.Counter
	InsufficientData prometheus.Counter

	NotifyFailures prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_total",
			Help: "Total monitoring ticks executed",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_tick_duration_seconds",
			Help:    "Wall-clock duration of one monitoring tick",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SymbolsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_symbols_processed_total",
			Help: "Symbols fetched and evaluated across all ticks",
		}),
		SymbolsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_symbols_abandoned_total",
			Help: "Symbols abandoned because the tick deadline expired",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_fetch_errors_total",
			Help: "Price source failures by class",
		}, []string{"class"}),
		AlertsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alerts_evaluated_total",
			Help: "Alert condition evaluations",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alerts_triggered_total",
			Help: "Alerts that fired",
		}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_insufficient_data_total",
			Help: "Evaluations skipped because the metric could not be computed",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_notify_failures_total",
			Help: "Trigger notifications that failed to deliver",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_indicator_cache_hits_total",
			Help: "Indicator cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_indicator_cache_misses_total",
			Help: "Indicator cache misses (stale or absent)",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TicksSkipped,
		m.TickDuration,
		m.SymbolsProcessed,
		m.SymbolsAbandoned,
		m.FetchErrors,
		m.AlertsEvaluated,
		m.AlertsTriggered,
		m.InsufficientData,
		m.NotifyFailures,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// HealthStatus represents the engine's health.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool      `json:"sqlite_ok"`
	RedisConnected bool      `json:"redis_connected"`
	LastTickAt     time.Time `json:"last_tick_at"`
	MarketOpen     bool      `json:"market_open"`

	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickAt(t time.Time) {
	h.mu.Lock()
	h.LastTickAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sqlx.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, db *sqlx.DB, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if db != nil {
					h.CheckSQLite(probeCtx, db)
				}
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.SQLiteOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else if !h.RedisConnected {
		// Cache is best-effort; degraded, not down.
		status = "degraded"
	}

	lastTick := ""
	if !h.LastTickAt.IsZero() {
		lastTick = h.LastTickAt.Format(time.RFC3339)
	}

	body := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		MarketOpen      bool    `json:"market_open"`
		LastTickAt      string  `json:"last_tick_at"`
	}{
		Status:          status,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		MarketOpen:      h.MarketOpen,
		LastTickAt:      lastTick,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
