package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"QuantSentinel/internal/analyzer"
	"QuantSentinel/internal/api"
	"QuantSentinel/internal/cache"
	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/config"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/recorder"
	"QuantSentinel/internal/scheduler"
	"QuantSentinel/internal/watch"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] QuantSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Init recorder, which doubles as the local provider
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init live source
	live, conn, prefix := newLiveSource(cfg)
	if conn != nil {
		cctx, ccancel := context.WithTimeout(ctx, cfg.Live.ConnectTimeout)
		if err := conn.Connect(cctx); err != nil {
			log.Printf("[WARN] live source not connected, serving local data: %v", err)
		}
		ccancel()
	}
	sel := &collector.Selector{Live: live, Local: rec, Prefix: prefix, Metrics: m}
	refresher := collector.NewRefresher(sel, rec, cfg.Live.FetchTimeout, cfg.HistoryDepth, m)

	// Init cache
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Cache.Store == "redis" {
		rs, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Expiry)
		if err != nil {
			log.Printf("[WARN] init redis store failed, using memory: %v", err)
		} else {
			store = rs
			defer rs.Close()
		}
	}
	ttl := make(map[model.Kind]time.Duration, len(cfg.Cache.TTL))
	for k, v := range cfg.Cache.TTL {
		ttl[model.Kind(k)] = v
	}
	snapshots := cache.New(store, refresher, cache.SystemClock{}, cache.Options{
		TTL:          ttl,
		DefaultTTL:   cfg.Cache.DefaultTTL,
		SingleFlight: cfg.Cache.SingleFlight,
		Metrics:      m,
	})

	an := analyzer.New(snapshots, cfg.Indicators.MACDMode, m)

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var alerts scheduler.Notifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		alerts = tn
	}

	// Init scheduler
	tracker, err := watch.NewTracker(cfg.Schedule.StateFile)
	if err != nil {
		log.Printf("[WARN] load signal state failed, starting empty: %v", err)
		tracker, _ = watch.NewTracker("")
	}
	sched := scheduler.NewScheduler(ctx, snapshots, an, rec, alerts, conn, m, scheduler.Options{
		Symbols:          cfg.Schedule.Symbols,
		Fallback:         config.DefaultSymbols,
		Workers:          cfg.Schedule.Workers,
		TaskTimeout:      2 * cfg.Live.FetchTimeout,
		RetentionDays:    cfg.Database.RetentionDays,
		BarRetentionDays: cfg.Database.BarRetentionDays,
		Tracker:          tracker,
	})
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.CleanupCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing watch list now")
		go sched.RunRefreshNow()
	}

	// Init HTTP server
	h := &api.Handler{
		Analyst:   an,
		Refresher: snapshots,
		History:   rec,
		Live:      conn,
		Batch:     sched,
		Defaults: api.Defaults{
			SMAPeriod:       cfg.Indicators.SMAPeriod,
			EMAPeriod:       cfg.Indicators.EMAPeriod,
			RSIPeriod:       cfg.Indicators.RSIPeriod,
			BollingerPeriod: cfg.Indicators.BollingerPeriod,
			BollingerStdDev: cfg.Indicators.BollingerStdDev,
		},
		ConnectTimeout: cfg.Live.ConnectTimeout,
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(h, cfg.CORS.AllowedOrigins, m.Handler()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		log.Printf("[INFO] HTTP server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] QuantSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	cancel()
	log.Println("[INFO] QuantSentinel stopped")
}

// newLiveSource builds the configured live provider. Both returns are nil
// for the "none" backend.
func newLiveSource(cfg *config.Config) (collector.Source, collector.Connector, string) {
	switch cfg.Live.Backend {
	case config.BackendGateway:
		g := collector.NewGatewaySource(cfg.Live.BaseURL, cfg.Live.APIKey, cfg.Proxy,
			cfg.Live.ConnectTimeout, cfg.Live.ReconnectInterval)
		log.Printf("[INFO] live source: gateway %s", cfg.Live.BaseURL)
		return g, g, cfg.Live.SymbolPrefix
	case config.BackendYahoo:
		y := collector.NewYahooSource(cfg.Proxy, cfg.Live.ReconnectInterval)
		log.Println("[INFO] live source: yahoo")
		return y, y, cfg.Live.SymbolPrefix
	case config.BackendSimulated:
		s := collector.NewSimulatedSource(150)
		log.Println("[INFO] live source: simulated")
		return s, s, ""
	default:
		log.Println("[INFO] no live source, serving local history only")
		return nil, nil, ""
	}
}
