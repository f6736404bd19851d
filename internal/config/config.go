package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port               int    `yaml:"port"`
	LogLevel           string `yaml:"log_level"`
	DefaultSymbol      string `yaml:"default_symbol"`
	DefaultMarket      string `yaml:"default_market"`
	BookRows           int    `yaml:"book_rows"`
	BookHeightPx       int    `yaml:"book_height_px"`
	FetchCooldownMs    int    `yaml:"fetch_cooldown_ms"`
	LoadingTimeoutSecs int    `yaml:"loading_timeout_seconds"`
	GatewayWSURL       string `yaml:"gateway_ws_url"`
	RestBaseURL        string `yaml:"rest_base_url"`
}

func defaults() Config {
	return Config{
		Port:               8087,
		LogLevel:           "info",
		DefaultSymbol:      "BTC-USDT",
		DefaultMarket:      "spot",
		BookRows:           25,
		BookHeightPx:       720,
		FetchCooldownMs:    2000,
		LoadingTimeoutSecs: 5,
		GatewayWSURL:       "wss://127.0.0.1:9443/stream",
		RestBaseURL:        "https://127.0.0.1:9443",
	}
}

func Load(path string) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	// Validation & normalization
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, errors.New("invalid port")
	}
	if cfg.BookRows < 1 {
		return cfg, errors.New("book_rows must be >=1")
	}
	switch strings.ToLower(cfg.DefaultMarket) {
	case "spot", "futures":
		cfg.DefaultMarket = strings.ToLower(cfg.DefaultMarket)
	default:
		return cfg, errors.New(`default_market must be "spot" or "futures"`)
	}
	if cfg.FetchCooldownMs < 0 {
		return cfg, errors.New("fetch_cooldown_ms must be >=0")
	}
	if cfg.LoadingTimeoutSecs < 1 {
		return cfg, errors.New("loading_timeout_seconds must be >=1")
	}
	cfg.DefaultSymbol = strings.ToUpper(strings.TrimSpace(cfg.DefaultSymbol))
	if cfg.DefaultSymbol == "" {
		return cfg, errors.New("default_symbol required")
	}
	return cfg, nil
}

func (c Config) FetchCooldown() time.Duration {
	return time.Duration(c.FetchCooldownMs) * time.Millisecond
}

func (c Config) LoadingTimeout() time.Duration {
	return time.Duration(c.LoadingTimeoutSecs) * time.Second
}

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
