package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daszybak/market_signals/internal/analysis"
	"github.com/daszybak/market_signals/internal/cache"
	"github.com/daszybak/market_signals/internal/microstructure"
	"github.com/daszybak/market_signals/internal/polymarket"
	"github.com/daszybak/market_signals/internal/store"
	"github.com/daszybak/market_signals/internal/tracker"
)

func main() {
	configPath := flag.String("config", "configs/analyzer/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := readConfig(configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := store.NewPool(ctx, store.PoolConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		PoolSize: cfg.Database.PoolSize,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Couldn't connect to database: %v", err)
	}
	st := store.New(pool)
	defer st.Close()

	logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	latest, err := cache.New(ctx, cache.Config{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		TTL:      cfg.Cache.TTL.Duration(),
	})
	if err != nil {
		log.Fatalf("Couldn't connect to cache: %v", err)
	}
	defer latest.Close()

	tr := tracker.New(tracker.Config{
		TopNLevels:  cfg.Analysis.TopNLevels,
		TradeWindow: cfg.Analysis.TradeWindow,
	}, logger)

	analyzerConfig := microstructure.DefaultConfig()
	if cfg.Analysis.TopNLevels > 0 {
		analyzerConfig.TopNLevels = cfg.Analysis.TopNLevels
	}
	analyzer := microstructure.New(analyzerConfig)

	runner := analysis.NewRunner(tr, analyzer, st, latest,
		cfg.Analysis.Interval.Duration(), cfg.SourceID, logger)
	go runner.Start(ctx)

	platform := polymarket.New(polymarket.Config{
		ClobURL:            cfg.Platforms.PolyMarket.ClobURL,
		GammaURL:           cfg.Platforms.PolyMarket.GammaURL,
		WebsocketURL:       cfg.Platforms.PolyMarket.WS.WebsocketURL + cfg.Platforms.PolyMarket.WS.MarketEndpoint,
		MarketSyncInterval: cfg.Platforms.PolyMarket.MarketSyncInterval.Duration(),
	}, st, tr, logger)

	if err := platform.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("platform stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := platform.Stop(shutdownCtx); err != nil {
		logger.Warn("couldn't stop platform cleanly", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
