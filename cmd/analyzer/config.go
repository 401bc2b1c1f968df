package main

import (
	"fmt"
	"os"

	configtypes "github.com/daszybak/market_signals/internal/config"
	"go.yaml.in/yaml/v4"
)

type config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	SourceID string `yaml:"source_id"`
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		PoolSize int    `yaml:"pool_size"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`
	Cache struct {
		Addr     string               `yaml:"addr"`
		Password string               `yaml:"password"`
		DB       int                  `yaml:"db"`
		TTL      configtypes.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Analysis struct {
		Interval    configtypes.Duration `yaml:"interval"`
		TopNLevels  int                  `yaml:"top_n_levels"`
		TradeWindow int                  `yaml:"trade_window"`
	} `yaml:"analysis"`
	Platforms struct {
		PolyMarket struct {
			WS struct {
				WebsocketURL   string `yaml:"url"`
				MarketEndpoint string `yaml:"market_endpoint"`
			} `yaml:"ws"`
			GammaURL           string               `yaml:"gamma_url"`
			ClobURL            string               `yaml:"clob_url"`
			MarketSyncInterval configtypes.Duration `yaml:"market_sync_interval"`
		} `yaml:"polymarket"`
	} `yaml:"platforms"`
}

func readConfig(configPath *string) (*config, error) {
	rawConfig, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file %s: %w", *configPath, err)
	}

	cfg := &config{}
	if err = yaml.Unmarshal(rawConfig, cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse config: %w", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}

	// Database
	if cfg.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if cfg.Database.Password == "" {
		return fmt.Errorf("database.password is required")
	}
	if cfg.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if cfg.Database.PoolSize <= 0 {
		return fmt.Errorf("database.pool_size must be greater than 0")
	}
	if cfg.Database.SSLMode == "" {
		return fmt.Errorf("database.ssl_mode is required")
	}

	// Cache
	if cfg.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required")
	}

	// Analysis
	if cfg.Analysis.Interval.Duration() <= 0 {
		return fmt.Errorf("analysis.interval must be greater than 0")
	}

	// Polymarket
	if cfg.Platforms.PolyMarket.WS.WebsocketURL == "" {
		return fmt.Errorf("platforms.polymarket.ws.url is required")
	}
	if cfg.Platforms.PolyMarket.WS.MarketEndpoint == "" {
		return fmt.Errorf("platforms.polymarket.ws.market_endpoint is required")
	}
	if cfg.Platforms.PolyMarket.GammaURL == "" {
		return fmt.Errorf("platforms.polymarket.gamma_url is required")
	}
	if cfg.Platforms.PolyMarket.ClobURL == "" {
		return fmt.Errorf("platforms.polymarket.clob_url is required")
	}
	if cfg.Platforms.PolyMarket.MarketSyncInterval.Duration() <= 0 {
		return fmt.Errorf("platforms.polymarket.market_sync_interval must be greater than 0")
	}

	return nil
}
