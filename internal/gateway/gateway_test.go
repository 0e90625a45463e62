package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockwatch/internal/markethours"
	"stockwatch/internal/model"
)

// ────────────────────────────────────────────────────────────
// Event buffer
// ────────────────────────────────────────────────────────────

func event(symbol string) model.TriggerEvent {
	return model.TriggerEvent{AlertID: "a1", Symbol: symbol, Timestamp: time.Now()}
}

func TestEventBufferSequence(t *testing.T) {
	b := NewEventBuffer(4)
	for _, s := range []string{"A", "B", "C"} {
		b.Push(event(s))
	}
	if b.Seq() != 3 || b.Len() != 3 {
		t.Fatalf("seq=%d len=%d, want 3/3", b.Seq(), b.Len())
	}

	got := b.Since(1)
	if len(got) != 2 || got[0].Event.Symbol != "B" || got[1].Event.Symbol != "C" {
		t.Errorf("Since(1): %+v", got)
	}
}

func TestEventBufferWrapAround(t *testing.T) {
	b := NewEventBuffer(3)
	for i := 0; i < 5; i++ {
		b.Push(event(fmt.Sprintf("S%d", i)))
	}
	if b.Len() != 3 {
		t.Fatalf("len=%d, want 3", b.Len())
	}

	got := b.Recent(0)
	if len(got) != 3 {
		t.Fatalf("recent: %+v", got)
	}
	// Oldest two overwritten; S2..S4 remain in order.
	for i, want := range []string{"S2", "S3", "S4"} {
		if got[i].Event.Symbol != want {
			t.Errorf("recent[%d]: got %s, want %s", i, got[i].Event.Symbol, want)
		}
	}
	if got[0].Seq != 3 || got[2].Seq != 5 {
		t.Errorf("seqs: %d..%d, want 3..5", got[0].Seq, got[2].Seq)
	}
}

func TestEventBufferRecentLimit(t *testing.T) {
	b := NewEventBuffer(10)
	for i := 0; i < 6; i++ {
		b.Push(event(fmt.Sprintf("S%d", i)))
	}
	got := b.Recent(2)
	if len(got) != 2 || got[0].Event.Symbol != "S4" || got[1].Event.Symbol != "S5" {
		t.Errorf("Recent(2): %+v", got)
	}
}

// ────────────────────────────────────────────────────────────
// REST handlers
// ────────────────────────────────────────────────────────────

type stubSource struct {
	series model.PriceSeries
	quote  model.Quote
	err    error
}

func (s *stubSource) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if s.err != nil {
		return model.Quote{}, s.err
	}
	return s.quote, nil
}

func (s *stubSource) GetHistory(ctx context.Context, symbol string, bars int) (model.PriceSeries, error) {
	if s.err != nil {
		return model.PriceSeries{}, s.err
	}
	return s.series, nil
}

type stubCache struct {
	data map[string][]byte
	puts int
}

func (c *stubCache) Get(ctx context.Context, symbol string) ([]byte, bool) {
	d, ok := c.data[symbol]
	return d, ok
}

func (c *stubCache) Put(ctx context.Context, symbol string, data []byte) {
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[symbol] = data
	c.puts++
}

func rampSeries(symbol string, n int) model.PriceSeries {
	bars := make([]model.PriceBar, n)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
	for i := range bars {
		c := float64(10 + i)
		bars[i] = model.PriceBar{Date: base.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return model.PriceSeries{Symbol: symbol, Bars: bars}
}

func testDeps(src *stubSource, cache *stubCache) Deps {
	return Deps{
		Hub:     NewHub(16),
		Source:  src,
		Cache:   cache,
		Session: markethours.NewYorkSession(),
		Started: time.Now(),
	}
}

func TestTestAlertWouldTrigger(t *testing.T) {
	src := &stubSource{
		series: rampSeries("AAPL", 21),
		quote:  model.Quote{Symbol: "AAPL", Price: 30},
	}
	d := testDeps(src, nil)

	body := `{"symbol":"AAPL","alert_type":"price","condition":"above","target_value":25}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/test", strings.NewReader(body))
	rec := httptest.NewRecorder()
	d.handleTestAlert(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Outcome      string  `json:"outcome"`
		WouldTrigger bool    `json:"would_trigger"`
		MetricValue  float64 `json:"metric_value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.WouldTrigger || resp.Outcome != "trigger" || resp.MetricValue != 30 {
		t.Errorf("response: %+v", resp)
	}
}

func TestTestAlertInsufficientData(t *testing.T) {
	src := &stubSource{
		series: rampSeries("AAPL", 3),
		quote:  model.Quote{Symbol: "AAPL", Price: 12},
	}
	d := testDeps(src, nil)

	body := `{"symbol":"AAPL","alert_type":"technical","indicator_type":"rsi","condition":"above","target_value":70}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/test", strings.NewReader(body))
	rec := httptest.NewRecorder()
	d.handleTestAlert(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Outcome      string `json:"outcome"`
		WouldTrigger bool   `json:"would_trigger"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.WouldTrigger || resp.Outcome != "insufficient_data" {
		t.Errorf("response: %+v", resp)
	}
}

func TestTestAlertRejectsInvalid(t *testing.T) {
	d := testDeps(&stubSource{}, nil)

	body := `{"symbol":"AAPL","alert_type":"price","condition":"sideways","target_value":25}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/test", strings.NewReader(body))
	rec := httptest.NewRecorder()
	d.handleTestAlert(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestTestAlertUnknownSymbol(t *testing.T) {
	src := &stubSource{err: fmt.Errorf("%w: NOPE", model.ErrFatal)}
	d := testDeps(src, nil)

	body := `{"symbol":"NOPE","alert_type":"price","condition":"above","target_value":25}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/test", strings.NewReader(body))
	rec := httptest.NewRecorder()
	d.handleTestAlert(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestIndicatorsComputesOnMiss(t *testing.T) {
	src := &stubSource{series: rampSeries("AAPL", 21)}
	cache := &stubCache{}
	d := testDeps(src, cache)
	d.HistoryBars = 60

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indicators?symbol=aapl", nil)
	rec := httptest.NewRecorder()
	d.handleIndicators(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var set struct {
		Symbol string `json:"symbol"`
		SMA20  struct {
			Value float64 `json:"value"`
			OK    bool    `json:"ok"`
		} `json:"sma20"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	if !set.SMA20.OK || set.SMA20.Value != 20.5 {
		t.Errorf("sma20: %+v", set.SMA20)
	}
	if cache.puts != 1 {
		t.Errorf("cache puts: got %d, want 1", cache.puts)
	}

	// Second request is served from the cache.
	rec = httptest.NewRecorder()
	d.handleIndicators(rec, httptest.NewRequest(http.MethodGet, "/api/v1/indicators?symbol=AAPL", nil))
	if rec.Code != http.StatusOK || cache.puts != 1 {
		t.Errorf("cache hit path: status=%d puts=%d", rec.Code, cache.puts)
	}
}

func TestIndicatorsRequiresSymbol(t *testing.T) {
	d := testDeps(&stubSource{}, nil)
	rec := httptest.NewRecorder()
	d.handleIndicators(rec, httptest.NewRequest(http.MethodGet, "/api/v1/indicators", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d := testDeps(&stubSource{}, nil)
	d.LastTick = func() model.TickStats {
		return model.TickStats{AlertsEvaluated: 7}
	}

	rec := httptest.NewRecorder()
	d.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		LastTick  model.TickStats `json:"last_tick"`
		WSClients int             `json:"ws_clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.LastTick.AlertsEvaluated != 7 || resp.WSClients != 0 {
		t.Errorf("response: %+v", resp)
	}
}
