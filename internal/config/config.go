package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PortfolioTracker/internal/collector"
	"PortfolioTracker/internal/recorder"
)

// ProviderConfig declares one quote provider.
type ProviderConfig struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Credential string `yaml:"credential"`
	Enabled    *bool  `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	Batch      *bool  `yaml:"batch"`
}

// IsEnabled reports whether the provider takes part in rotation. Providers
// are enabled unless set otherwise.
func (p ProviderConfig) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// Config holds all application configuration.
type Config struct {
	Symbols   []string         `yaml:"symbols"`
	Providers []ProviderConfig `yaml:"providers"`
	Scheduler struct {
		CycleIntervalRaw string `yaml:"cycle_interval"`
		SymbolDelayRaw   string `yaml:"symbol_delay"`
		FetchTimeoutRaw  string `yaml:"fetch_timeout"`
		RunOnStart       *bool  `yaml:"run_on_start"`

		CycleInterval time.Duration `yaml:"-"`
		SymbolDelay   time.Duration `yaml:"-"`
		FetchTimeout  time.Duration `yaml:"-"`
	} `yaml:"scheduler"`
	Store struct {
		Backend      string `yaml:"backend"`
		Path         string `yaml:"path"`
		ClearOnStart bool   `yaml:"clear_on_start"`
	} `yaml:"store"`
	Aggregator struct {
		IntervalRaw string `yaml:"interval"`
		WindowSize  int    `yaml:"window_size"`
		OutputPath  string `yaml:"output_path"`

		Interval time.Duration `yaml:"-"`
	} `yaml:"aggregator"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		ChatID      string `yaml:"chat_id"`
		IntervalRaw string `yaml:"interval"`

		Interval time.Duration `yaml:"-"`
	} `yaml:"telegram"`
	Proxy              string `yaml:"proxy"`
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`

	ShutdownTimeout time.Duration `yaml:"-"`
}

// DefaultSymbols is the portfolio tracked when none is configured.
var DefaultSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}

// DefaultProviders returns the rotation used when none is configured.
func DefaultProviders() []ProviderConfig {
	off := false
	return []ProviderConfig{
		{ID: "alphavantage", Type: "alphavantage", Credential: "ALPHAVANTAGE_API_KEY"},
		{ID: "fmp", Type: "fmp", Credential: "FMP_API_KEY"},
		{ID: "yahoo", Type: "yahoo"},
		{ID: "mock", Type: "mock", Enabled: &off},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("CYCLE_INTERVAL"); v != "" {
		c.Scheduler.CycleIntervalRaw = v
	}
	if v := os.Getenv("SYMBOL_DELAY"); v != "" {
		c.Scheduler.SymbolDelayRaw = v
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		c.Scheduler.FetchTimeoutRaw = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Scheduler.RunOnStart = &b
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CLEAR_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CLEAR_ON_START: %w", err)
		}
		c.Store.ClearOnStart = b
	}
	if v := os.Getenv("AGGREGATE_INTERVAL"); v != "" {
		c.Aggregator.IntervalRaw = v
	}
	if v := os.Getenv("WINDOW_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WINDOW_SIZE: %w", err)
		}
		c.Aggregator.WindowSize = n
	}
	if v := os.Getenv("OUTPUT_PATH"); v != "" {
		c.Aggregator.OutputPath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Symbols = normalizeSymbols(c.Symbols)
	if len(c.Symbols) == 0 {
		c.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if len(c.Providers) == 0 {
		c.Providers = DefaultProviders()
	}
	if c.Scheduler.CycleIntervalRaw == "" {
		c.Scheduler.CycleIntervalRaw = "60s"
	}
	if c.Scheduler.SymbolDelayRaw == "" {
		c.Scheduler.SymbolDelayRaw = "1.2s"
	}
	if c.Scheduler.FetchTimeoutRaw == "" {
		c.Scheduler.FetchTimeoutRaw = "10s"
	}
	if c.Scheduler.RunOnStart == nil {
		on := true
		c.Scheduler.RunOnStart = &on
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "csv"
	}
	if c.Store.Path == "" {
		if strings.EqualFold(c.Store.Backend, "sqlite") {
			c.Store.Path = "data/portfolio_quotes.db"
		} else {
			c.Store.Path = "data/portfolio_quotes.csv"
		}
	}
	if c.Aggregator.IntervalRaw == "" {
		c.Aggregator.IntervalRaw = "15s"
	}
	if c.Aggregator.WindowSize == 0 {
		c.Aggregator.WindowSize = 100
	}
	if c.Aggregator.OutputPath == "" {
		c.Aggregator.OutputPath = "out/window.json"
	}
	if c.Telegram.IntervalRaw == "" {
		c.Telegram.IntervalRaw = "1h"
	}
	if c.ShutdownTimeoutRaw == "" {
		c.ShutdownTimeoutRaw = "15s"
	}
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"scheduler.cycle_interval", c.Scheduler.CycleIntervalRaw, &c.Scheduler.CycleInterval},
		{"scheduler.symbol_delay", c.Scheduler.SymbolDelayRaw, &c.Scheduler.SymbolDelay},
		{"scheduler.fetch_timeout", c.Scheduler.FetchTimeoutRaw, &c.Scheduler.FetchTimeout},
		{"aggregator.interval", c.Aggregator.IntervalRaw, &c.Aggregator.Interval},
		{"telegram.interval", c.Telegram.IntervalRaw, &c.Telegram.Interval},
		{"shutdown_timeout", c.ShutdownTimeoutRaw, &c.ShutdownTimeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(strings.TrimSpace(f.raw))
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	for i, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symbols[%d] is empty", i)
		}
	}
	enabled := 0
	for i, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("providers[%d].type is required", i)
		}
		if p.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}
	if c.Scheduler.CycleInterval < time.Second {
		return fmt.Errorf("scheduler.cycle_interval must be at least 1s")
	}
	if c.Scheduler.SymbolDelay < 0 {
		return fmt.Errorf("scheduler.symbol_delay must not be negative")
	}
	if c.Scheduler.FetchTimeout <= 0 {
		return fmt.Errorf("scheduler.fetch_timeout must be positive")
	}
	switch strings.ToLower(c.Store.Backend) {
	case "csv", "sqlite", "memory":
	default:
		return fmt.Errorf("store.backend %q is not one of csv, sqlite, memory", c.Store.Backend)
	}
	if c.Aggregator.Interval < time.Second {
		return fmt.Errorf("aggregator.interval must be at least 1s")
	}
	if c.Aggregator.WindowSize <= 0 {
		return fmt.Errorf("aggregator.window_size must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

// TelegramEnabled reports whether window summaries are posted to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// ProviderSpecs returns the enabled providers in rotation order.
func (c *Config) ProviderSpecs() []collector.Spec {
	var out []collector.Spec
	for _, p := range c.Providers {
		if !p.IsEnabled() {
			continue
		}
		out = append(out, collector.Spec{
			ID:         p.ID,
			Type:       p.Type,
			BaseURL:    p.BaseURL,
			Credential: p.Credential,
			Batch:      p.Batch,
		})
	}
	return out
}

// StartPolicy maps store.clear_on_start to the store open policy.
func (c *Config) StartPolicy() recorder.StartPolicy {
	if c.Store.ClearOnStart {
		return recorder.Clear
	}
	return recorder.Preserve
}

func splitSymbols(v string) []string {
	return normalizeSymbols(strings.Split(v, ","))
}

// normalizeSymbols upper-cases and trims symbols, dropping blanks and repeats
// while keeping first-seen order.
func normalizeSymbols(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
