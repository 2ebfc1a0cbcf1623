package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"PortfolioTracker/internal/aggregator"
	"PortfolioTracker/internal/collector"
	"PortfolioTracker/internal/config"
	"PortfolioTracker/internal/metrics"
	"PortfolioTracker/internal/recorder"
	"PortfolioTracker/internal/scheduler"
	"PortfolioTracker/internal/sink"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] PortfolioTracker starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the YAML config file")
	flag.Parse()

	if err := config.LoadDotenv(); err != nil {
		log.Printf("[WARN] load .env: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Providers
	registry := collector.NewRegistry()
	for _, spec := range cfg.ProviderSpecs() {
		d, err := collector.Build(spec, collector.OSEnv{}, cfg.Proxy)
		if err != nil {
			log.Fatalf("[FATAL] build provider: %v", err)
		}
		if err := registry.Register(d); err != nil {
			log.Fatalf("[FATAL] register provider: %v", err)
		}
	}
	providers, err := registry.ActiveProviders(collector.OSEnv{})
	if err != nil {
		var cfgErr *collector.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("[FATAL] %v", cfgErr)
		}
		log.Fatalf("[FATAL] resolve providers: %v", err)
	}
	for i, d := range providers {
		log.Printf("[INFO] provider %d: %s (batch=%t)", i+1, d.ID, d.Batch)
	}

	// Store
	store, err := recorder.Open(cfg.Store.Backend, cfg.Store.Path, cfg.StartPolicy())
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	log.Printf("[INFO] store: %s %s (%s)", cfg.Store.Backend, cfg.Store.Path, cfg.StartPolicy())

	m := metrics.New()
	var srv *metrics.Server
	if cfg.Metrics.Addr != "" {
		srv = metrics.NewServer(cfg.Metrics.Addr, m)
		go srv.Listen()
	}

	col := collector.NewCollector(cfg.Symbols, cfg.Scheduler.SymbolDelay, cfg.Scheduler.FetchTimeout)
	rot, err := scheduler.NewRotator(providers, col, store, m)
	if err != nil {
		log.Fatalf("[FATAL] init rotator: %v", err)
	}
	sinks := []aggregator.Sink{sink.NewJSONFile(cfg.Aggregator.OutputPath), sink.Log{}}
	var tg *sink.Telegram
	if cfg.TelegramEnabled() {
		tg = sink.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, cfg.Telegram.Interval)
		sinks = append(sinks, tg)
		log.Printf("[INFO] telegram summaries every %s", cfg.Telegram.Interval)
	}
	agg := aggregator.New(store, cfg.Aggregator.WindowSize, m, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, rot, agg, scheduler.Options{
		CycleInterval:     cfg.Scheduler.CycleInterval,
		AggregateInterval: cfg.Aggregator.Interval,
		RunOnStart:        *cfg.Scheduler.RunOnStart,
	})
	if err := sched.RegisterAll(); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()

	log.Printf("[INFO] tracking %v. Press Ctrl+C to stop.", cfg.Symbols)
	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("[WARN] %v", err)
	}
	if tg != nil {
		done := make(chan struct{})
		go func() {
			tg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Println("[WARN] telegram delivery still running at shutdown")
		}
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] metrics shutdown: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		log.Printf("[ERROR] close store: %v", err)
	}
	log.Println("[INFO] PortfolioTracker stopped")
}
