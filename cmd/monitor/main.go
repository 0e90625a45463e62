// cmd/monitor — the stock alert monitoring service.
//
// Wires together the Alphafeed price source, the SQLite alert store, the
// Redis indicator cache, the notification stack, the WebSocket/REST
// gateway and the evaluation engine, then runs until SIGINT/SIGTERM.
//
// Config (env vars, see config package):
//
//	ALPHAFEED_API_KEY / ALPHAFEED_CLIENT_ID / ALPHAFEED_TOTP_SECRET
//	REDIS_ADDR, SQLITE_PATH, METRICS_ADDR, GATEWAY_ADDR
//	MONITOR_INTERVAL, TICK_TIMEOUT, MAX_CONCURRENT_FETCHES, HISTORY_BARS
//	WEBHOOK_URL, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/config"
	"stockwatch/internal/gateway"
	"stockwatch/internal/logger"
	"stockwatch/internal/markethours"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
	"stockwatch/internal/monitor"
	"stockwatch/internal/notification"
	redisstore "stockwatch/internal/store/redis"
	"stockwatch/internal/store/sqlite"
	"stockwatch/pkg/alphafeed"
)

func main() {
	cfg := config.Load()
	logger.Init("monitor", parseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	session := markethours.NewYorkSession()

	// ─── Stores ───
	store, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		slog.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var cache model.IndicatorCache
	rcache, err := redisstore.New(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.FreshnessWindow,
	})
	if err != nil {
		// Cache is best-effort; run without it rather than refuse to start.
		slog.Warn("redis unavailable, running without indicator cache", "error", err)
	} else {
		cache = rcache
		defer rcache.Close()
	}

	// ─── Price source ───
	feed := alphafeed.New(alphafeed.Config{
		APIKey:     cfg.FeedAPIKey,
		ClientID:   cfg.FeedClientID,
		TOTPSecret: cfg.FeedTOTPSecret,
		RootURL:    cfg.FeedRootURL,
	})

	// ─── Notifications ───
	notifiers := []model.Notifier{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	multi := notification.NewMulti(notifiers...)

	// ─── Metrics and health ───
	m := metrics.NewMetrics()
	multi.OnFailure = m.NotifyFailures.Inc

	health := metrics.NewHealthStatus()
	if rcache != nil {
		health.StartLivenessChecker(ctx, store.DB(), rcache.Client(), 15*time.Second)
	} else {
		health.StartLivenessChecker(ctx, store.DB(), nil, 15*time.Second)
	}
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ─── Engine ───
	engine := monitor.New(monitor.Config{
		Interval:             cfg.Interval,
		TickTimeout:          cfg.TickTimeout,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		HistoryBars:          cfg.HistoryBars,
		MarketHoursOnly:      cfg.MarketHoursOnly,
	}, feed, store, multi, cache, session, m)

	// ─── Gateway ───
	hub := gateway.NewHub(500)
	engine.OnTrigger = hub.BroadcastTrigger
	engine.OnTick = func(stats model.TickStats) {
		health.SetLastTickAt(stats.StartedAt)
		health.SetMarketOpen(session.IsOpen(time.Now()))
	}

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, gateway.Deps{
		Hub:         hub,
		Store:       store,
		Source:      feed,
		Cache:       cache,
		Session:     session,
		Metrics:     m,
		LastTick:    engine.LastTick,
		HistoryBars: cfg.HistoryBars,
		Started:     start,
	})
	hub.StartStatusBroadcast(ctx, 30*time.Second, func() interface{} {
		now := time.Now()
		return map[string]interface{}{
			"market_open":   session.IsOpen(now),
			"market_status": session.StatusString(now),
			"last_tick":     engine.LastTick(),
		}
	})

	gwSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}
	go func() {
		slog.Info("gateway listening", "addr", cfg.GatewayAddr)
		if err := gwSrv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("gateway server error", "error", err)
		}
	}()

	go engine.Run(ctx)

	slog.Info("monitor service up",
		"interval", cfg.Interval,
		"market_status", session.StatusString(time.Now()),
	)

	// ─── Shutdown ───
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	gwSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	slog.Info("bye")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
