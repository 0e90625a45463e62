// Package alphafeed is a thin HTTP client for the Alphafeed market-data
// API. It implements the engine's price-source port: latest quotes and
// daily history bars, with failures classified as transient (retry next
// tick) or fatal (bad symbol, flag and skip).
//
// Sessions authenticate with an API key plus a TOTP code derived from
// the account's shared secret; the session token is refreshed
// transparently when the API reports it expired.
package alphafeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"stockwatch/internal/model"
)

const defaultRoot = "https://api.alphafeed.io"

var routes = map[string]string{
	"auth.login":     "/auth/v1/login",
	"market.quote":   "/market/v1/quote",
	"market.history": "/market/v1/history",
}

// Config configures the Alphafeed client.
type Config struct {
	APIKey     string
	ClientID   string
	TOTPSecret string // base32 shared secret for session login

	RootURL string        // default: https://api.alphafeed.io
	Timeout time.Duration // per-request; default 10s
}

// Client talks to the Alphafeed REST API. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// New creates a client. It does not log in; the first request does.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	cfg.RootURL = strings.TrimRight(cfg.RootURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// login exchanges API key + TOTP code for a session token.
func (c *Client) login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("alphafeed: totp: %w", err)
	}

	body, _ := json.Marshal(map[string]string{
		"api_key":   c.cfg.APIKey,
		"client_id": c.cfg.ClientID,
		"totp":      code,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RootURL+routes["auth.login"], bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %v", model.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login status %d", model.ErrTransient, resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		return fmt.Errorf("%w: login: malformed response", model.ErrTransient)
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	slog.Info("alphafeed session established")
	return nil
}

func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	if err := c.login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// get performs one authenticated GET, retrying once after a re-login if
// the session token expired.
func (c *Client) get(ctx context.Context, route string, params url.Values, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		tok, err := c.sessionToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.RootURL+routes[route]+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("X-API-Key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Timeouts and connection failures are retryable next tick.
			return fmt.Errorf("%w: %v", model.ErrTransient, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err = json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: malformed response: %v", model.ErrTransient, err)
			}
			return nil

		case http.StatusUnauthorized:
			// Session expired: drop the token and retry once.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			continue

		case http.StatusNotFound, http.StatusUnprocessableEntity:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w: %s", model.ErrFatal, params.Get("symbol"))

		case http.StatusTooManyRequests:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w: rate limited", model.ErrTransient)

		default:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", model.ErrTransient, resp.StatusCode)
		}
	}
	return fmt.Errorf("%w: session refresh failed", model.ErrTransient)
}

type quoteDTO struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Timestamp     int64   `json:"timestamp"` // unix seconds
}

type historyDTO struct {
	Symbol string `json:"symbol"`
	Bars   []struct {
		Date   string  `json:"date"` // YYYY-MM-DD
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume int64   `json:"volume"`
	} `json:"bars"`
}

// GetQuote fetches the latest market snapshot for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	params := url.Values{"symbol": {symbol}}
	var dto quoteDTO
	if err := c.get(ctx, "market.quote", params, &dto); err != nil {
		return model.Quote{}, err
	}
	return model.Quote{
		Symbol:        dto.Symbol,
		Price:         dto.Price,
		Change:        dto.Change,
		ChangePercent: dto.ChangePercent,
		Volume:        dto.Volume,
		Timestamp:     time.Unix(dto.Timestamp, 0).UTC(),
	}, nil
}

// GetHistory fetches daily bars for a symbol, oldest first.
func (c *Client) GetHistory(ctx context.Context, symbol string, bars int) (model.PriceSeries, error) {
	params := url.Values{
		"symbol":   {symbol},
		"days":     {fmt.Sprint(bars)},
		"interval": {"1d"},
	}
	var dto historyDTO
	if err := c.get(ctx, "market.history", params, &dto); err != nil {
		return model.PriceSeries{}, err
	}

	series := model.PriceSeries{Symbol: symbol, Bars: make([]model.PriceBar, 0, len(dto.Bars))}
	for _, b := range dto.Bars {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue // skip malformed bars rather than poison the series
		}
		series.Bars = append(series.Bars, model.PriceBar{
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if len(series.Bars) == 0 {
		return model.PriceSeries{}, errors.New("alphafeed: empty history for " + symbol)
	}
	return series, nil
}
