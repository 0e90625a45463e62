package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stockwatch/internal/alert"
	"stockwatch/internal/indicator"
	"stockwatch/internal/markethours"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
	"stockwatch/internal/monitor"
	"stockwatch/internal/store/sqlite"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Deps carries the collaborators the REST and WS handlers need.
// Metrics may be nil.
type Deps struct {
	Hub     *Hub
	Store   *sqlite.Store
	Source  model.PriceSource
	Cache   model.IndicatorCache
	Session markethours.Session
	Metrics *metrics.Metrics

	// LastTick returns the most recent tick stats (monitor.Engine.LastTick).
	LastTick func() model.TickStats

	// HistoryBars matches the engine's fetch depth so on-demand
	// indicator snapshots agree with evaluated ones.
	HistoryBars int

	Started time.Time
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	if d.HistoryBars < 60 {
		d.HistoryBars = 60
	}

	// WebSocket trigger stream. ?last_seq=N backfills missed events.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws upgrade failed", "error", err)
			return
		}
		lastSeq, _ := strconv.ParseInt(r.URL.Query().Get("last_seq"), 10, 64)
		d.Hub.HandleConn(conn, lastSeq)
	})

	mux.HandleFunc("/api/v1/status", d.handleStatus)
	mux.HandleFunc("/api/v1/events", d.handleEvents)
	mux.HandleFunc("/api/v1/indicators", d.handleIndicators)
	mux.HandleFunc("/api/v1/alerts/test", d.handleTestAlert)
	mux.HandleFunc("/api/v1/alerts", d.handleAlerts)
	mux.HandleFunc("/api/v1/alerts/", d.handleAlertByID)
}

func (d Deps) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	var last model.TickStats
	if d.LastTick != nil {
		last = d.LastTick()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"market_open":   d.Session.IsOpen(now),
		"market_status": d.Session.StatusString(now),
		"last_tick":     last,
		"ws_clients":    d.Hub.ClientCount(),
		"event_seq":     d.Hub.Events().Seq(),
		"uptime_sec":    int64(time.Since(d.Started).Seconds()),
		"ts":            now.UTC().Format(time.RFC3339Nano),
	})
}

// handleEvents backfills recent trigger events. ?after_seq=N returns
// events newer than N; ?limit=M caps the plain listing.
func (d Deps) handleEvents(w http.ResponseWriter, r *http.Request) {
	if after := r.URL.Query().Get("after_seq"); after != "" {
		seq, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after_seq must be an integer")
			return
		}
		writeJSON(w, http.StatusOK, d.Hub.Events().Since(seq))
		return
	}

	limit := 100
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	writeJSON(w, http.StatusOK, d.Hub.Events().Recent(limit))
}

// handleIndicators serves the latest indicator snapshot for a symbol.
// Cache hit returns the engine's last computed set; a miss computes one
// on demand from fresh history.
func (d Deps) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if d.Cache != nil {
		if data, ok := d.Cache.Get(r.Context(), symbol); ok {
			if d.Metrics != nil {
				d.Metrics.CacheHits.Inc()
			}
			SetCORS(w)
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
			return
		}
		if d.Metrics != nil {
			d.Metrics.CacheMisses.Inc()
		}
	}

	series, err := d.Source.GetHistory(r.Context(), symbol, d.HistoryBars)
	if err != nil {
		if errors.Is(err, model.ErrFatal) {
			writeError(w, http.StatusNotFound, "unknown symbol: "+symbol)
			return
		}
		writeError(w, http.StatusBadGateway, "price source unavailable")
		return
	}

	set := indicator.ComputeSet(series)
	if d.Cache != nil {
		if b, err := json.Marshal(set); err == nil {
			d.Cache.Put(r.Context(), symbol, b)
		}
	}
	writeJSON(w, http.StatusOK, set)
}

// handleTestAlert evaluates a candidate definition against live data
// without persisting anything. The response distinguishes "would
// trigger", "would not trigger" and "not enough data".
func (d Deps) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		SetCORS(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var def model.AlertDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	def.IsActive = true
	if def.Cooldown == 0 {
		def.Cooldown = model.DefaultCooldown
	}
	if def.OwnerID == "" {
		def.OwnerID = "test"
	}
	if err := alert.Validate(&def); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := d.Source.GetHistory(r.Context(), def.Symbol, d.HistoryBars)
	if err != nil {
		if errors.Is(err, model.ErrFatal) {
			writeError(w, http.StatusNotFound, "unknown symbol: "+def.Symbol)
			return
		}
		writeError(w, http.StatusBadGateway, "price source unavailable")
		return
	}
	quote, err := d.Source.GetQuote(r.Context(), def.Symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, "price source unavailable")
		return
	}

	cur := indicator.ComputeSet(series)
	prevSeries := model.PriceSeries{Symbol: def.Symbol}
	if len(series.Bars) > 1 {
		prevSeries.Bars = series.Bars[:len(series.Bars)-1]
	}
	prev := indicator.ComputeSet(prevSeries)

	current, previous := monitor.MetricPair(&def, quote, series, cur, prev)
	decision := alert.Evaluate(&def, current, previous, time.Now())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":       decision.Outcome.String(),
		"would_trigger": decision.Triggered(),
		"status":        decision.Status,
		"metric_value":  decision.MetricValue,
		"reason":        decision.Reason,
	})
}

// handleAlerts lists (GET ?owner=) and creates (POST) alert definitions.
func (d Deps) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		SetCORS(w)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			writeError(w, http.StatusBadRequest, "owner is required")
			return
		}
		alerts, err := d.Store.ListAlerts(r.Context(), owner)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "listing alerts failed")
			return
		}
		writeJSON(w, http.StatusOK, alerts)

	case http.MethodPost:
		var def model.AlertDefinition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		def.Symbol = strings.ToUpper(strings.TrimSpace(def.Symbol))
		if err := d.Store.CreateAlert(r.Context(), &def); err != nil {
			if errors.Is(err, alert.ErrInvalidDefinition) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "creating alert failed")
			return
		}
		writeJSON(w, http.StatusCreated, def)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

// handleAlertByID serves GET, PATCH {"is_active": bool} and DELETE on
// /api/v1/alerts/{id}.
func (d Deps) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "alert id required")
		return
	}

	switch r.Method {
	case http.MethodOptions:
		SetCORS(w)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		a, err := d.Store.GetAlert(r.Context(), id)
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "loading alert failed")
			return
		}
		writeJSON(w, http.StatusOK, a)

	case http.MethodPut:
		var def model.AlertDefinition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		def.ID = id
		def.Symbol = strings.ToUpper(strings.TrimSpace(def.Symbol))
		err := d.Store.UpdateAlert(r.Context(), &def)
		switch {
		case errors.Is(err, alert.ErrInvalidDefinition):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, sqlite.ErrNotFound):
			writeError(w, http.StatusNotFound, "alert not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "updating alert failed")
		default:
			writeJSON(w, http.StatusOK, def)
		}

	case http.MethodPatch:
		var body struct {
			IsActive *bool `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsActive == nil {
			writeError(w, http.StatusBadRequest, "body must be {\"is_active\": bool}")
			return
		}
		err := d.Store.SetActive(r.Context(), id, *body.IsActive)
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "updating alert failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case http.MethodDelete:
		err := d.Store.DeleteAlert(r.Context(), id)
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "deleting alert failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET, PUT, PATCH or DELETE required")
	}
}
