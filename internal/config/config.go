package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"planner/internal/logging"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken  string         `yaml:"telegram_token"`
	DatabaseURL    string         `yaml:"database_url"`
	ReportInterval time.Duration  `yaml:"report_interval"`
	ReportTime     string         `yaml:"report_time"`
	HTTPAddr       string         `yaml:"http_addr"`
	RedisURL       string         `yaml:"redis_url"`
	Log            logging.Config `yaml:"log"`

	// Generation horizon: how far ahead instances are materialized and how
	// close the last open instance may get before a series is topped up.
	WindowDays         int           `yaml:"window_days"`
	LookaheadDays      int           `yaml:"lookahead_days"`
	GenerationInterval time.Duration `yaml:"generation_interval"`
	GenerationDelay    time.Duration `yaml:"generation_delay"`

	ReportRatePerSec int `yaml:"report_rate_per_sec"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DatabaseURL:        "daily_planner.db",
		ReportInterval:     5 * time.Hour,
		Log:                logging.Config{Level: "info", Format: "console"},
		WindowDays:         30,
		LookaheadDays:      7,
		GenerationInterval: time.Hour,
		GenerationDelay:    2 * time.Second,
		ReportRatePerSec:   20,
	}
}

// Load reads an optional YAML file named by CONFIG_FILE, then environment
// variables, on top of the defaults.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg, os.Getenv)
	return cfg, cfg.Validate()
}

// Validate rejects configurations the planner cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.TelegramToken == "" && c.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("TELEGRAM_TOKEN or HTTP_ADDR is required"))
	}
	if c.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("window days must be positive"))
	}
	if c.LookaheadDays <= 0 {
		errs = append(errs, fmt.Errorf("lookahead days must be positive"))
	}
	if c.GenerationInterval <= 0 {
		errs = append(errs, fmt.Errorf("generation interval must be positive"))
	}
	return errors.Join(errs...)
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := get("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := get("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if d := parseInterval(get("REPORT_INTERVAL_HOURS")); d > 0 {
		cfg.ReportInterval = d
	}
	if v := get("REPORT_TIME"); v != "" {
		cfg.ReportTime = v
	}
	if v := get("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := get("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := get("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if n := parsePositive(get("WINDOW_DAYS")); n > 0 {
		cfg.WindowDays = n
	}
	if n := parsePositive(get("LOOKAHEAD_DAYS")); n > 0 {
		cfg.LookaheadDays = n
	}
	if d := parseDuration(get("GENERATION_INTERVAL")); d > 0 {
		cfg.GenerationInterval = d
	}
	if d := parseDuration(get("GENERATION_DELAY")); d > 0 {
		cfg.GenerationDelay = d
	}
	if n := parsePositive(get("REPORT_RATE_PER_SEC")); n > 0 {
		cfg.ReportRatePerSec = n
	}
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func parsePositive(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
