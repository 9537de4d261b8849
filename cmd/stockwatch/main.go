package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/cache"
	"StockWatch/internal/collector"
	"StockWatch/internal/config"
	"StockWatch/internal/gateway"
	"StockWatch/internal/metrics"
	"StockWatch/internal/model"
	"StockWatch/internal/notifier"
	"StockWatch/internal/publisher"
	"StockWatch/internal/recorder"
	"StockWatch/internal/refresher"
	"StockWatch/internal/scheduler"
	"StockWatch/internal/watchlist"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Info().Msg("StockWatch starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("bad log level")
	}
	zerolog.SetGlobalLevel(level)

	m := metrics.New()

	// Init fetcher
	fetcher := newFetcher(cfg)
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0755); err != nil {
			log.Fatal().Err(err).Msg("create data directory")
		}
	}

	// Init watchlist
	store, closeStore, err := newWatchlistStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init watchlist store")
	}
	defer closeStore()
	wl, err := watchlist.Open(store, cfg.Watchlist.Defaults)
	if err != nil {
		log.Fatal().Err(err).Msg("open watchlist")
	}

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	var history gateway.HistorySource
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
			history = sr
			defer sr.Close()
		}
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Publisher and render surfaces. Close tears down every attached handle.
	pub := publisher.New()
	defer pub.Close()

	hub := gateway.NewHub(m)
	pub.Attach(hub)

	if cfg.Redis.Addr != "" {
		sink, err := cache.NewRedisSink(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, snapshots will not be mirrored")
		} else {
			pub.Attach(sink)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("mirroring snapshots to redis")
		}
	}

	// Telegram notifier is optional
	var sender notifier.Sender
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	}
	alerts := notifier.NewAlertNotifier(sender, rec, m)
	pub.Subscribe(alerts)
	go alerts.Run(ctx)

	// Refresh pipeline
	ref := refresher.New(fetcher, pub, refresher.Options{
		Interval:    cfg.Refresh.Interval,
		AutoRefresh: cfg.Refresh.AutoRefresh,
		Metrics:     m,
	})
	defer ref.Close()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, ref, pub, wl, sender, rec, m)
	if err := sched.RegisterAll(cfg.Schedule.ArchiveCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("Telegram polling started")
	}

	// HTTP surface
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: (&gateway.Server{
			Hub:       hub,
			Refresher: ref,
			Snapshots: pub,
			Watchlist: wl,
			History:   history,
			Metrics:   m.Handler(),
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	// Archive the first published snapshot right away if requested
	if os.Getenv("RUN_ON_START") == "true" {
		var once sync.Once
		var unsubscribe func()
		unsubscribe = pub.Subscribe(publisher.ObserverFunc(func(*model.Snapshot) {
			once.Do(func() {
				log.Info().Msg("RUN_ON_START=true, archiving first snapshot")
				go func() {
					unsubscribe()
					sched.RunArchiveNow()
				}()
			})
		}))
	}

	if err := ref.SetActiveSymbol(cfg.Refresh.DefaultSymbol); err != nil {
		log.Error().Err(err).Str("symbol", cfg.Refresh.DefaultSymbol).Msg("set initial symbol")
	}

	log.Info().Msg("StockWatch is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
	log.Info().Msg("StockWatch stopped")
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	opts := collector.ClientOptions{
		Timeout:           cfg.DataSource.Timeout,
		RequestsPerMinute: cfg.DataSource.RequestsPerMinute,
		MaxRetries:        cfg.DataSource.MaxRetries,
		Proxy:             cfg.Proxy,
	}
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.DataSource.BaseURL, opts)
	case "mock":
		return &collector.MockFetcher{Price: 100, Days: 250}
	default:
		return collector.NewAlphaVantageFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.DataSource.OutputSize, opts)
	}
}

func newWatchlistStore(cfg *config.Config) (watchlist.Store, func(), error) {
	switch cfg.Watchlist.Backend {
	case "sqlite":
		s, err := watchlist.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := watchlist.NewPostgresStore(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return watchlist.NewFileStore(cfg.Watchlist.File), func() {}, nil
	}
}
