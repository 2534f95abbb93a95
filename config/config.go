package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"focus-pipeline/analytics"
)

type Config struct {
	HTTPAddr        string
	RedisAddr       string
	OracleBaseURL   string
	OracleToken     string
	OracleTimeout   time.Duration
	RefreshInterval time.Duration
	UserID          string
	SnapshotTTL     time.Duration
	ThresholdsFile  string
	LogLevel        string
	Timezone        string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		RedisAddr:       "localhost:6379",
		OracleBaseURL:   "http://localhost:8000",
		OracleTimeout:   10 * time.Second,
		RefreshInterval: 30 * time.Second,
		UserID:          "user123",
		SnapshotTTL:     24 * time.Hour,
		LogLevel:        "info",
		Timezone:        "Local",
	}
}

// Load reads .env when present, applies environment overrides and
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	// An explicitly empty REDIS_ADDR selects the in-memory store.
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := os.LookupEnv("ORACLE_BASE_URL"); ok {
		cfg.OracleBaseURL = v
	}
	if v := os.Getenv("ORACLE_TOKEN"); v != "" {
		cfg.OracleToken = v
	}
	if v := os.Getenv("ORACLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OracleTimeout = d
		}
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RefreshInterval = d
		}
	}
	if v := os.Getenv("FOCUS_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("SNAPSHOT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SnapshotTTL = d
		}
	}
	if v := os.Getenv("THRESHOLDS_FILE"); v != "" {
		cfg.ThresholdsFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	if c.UserID == "" {
		return errors.New("FOCUS_USER_ID must not be empty")
	}
	if c.OracleTimeout <= 0 {
		return errors.New("ORACLE_TIMEOUT must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("REFRESH_INTERVAL must be positive")
	}
	if c.SnapshotTTL < 0 {
		return errors.New("SNAPSHOT_TTL must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// LoadThresholds overlays the YAML file at path on the default thresholds.
// An empty path yields the defaults.
func LoadThresholds(path string) (analytics.Thresholds, error) {
	t := analytics.DefaultThresholds()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return t, nil
}
