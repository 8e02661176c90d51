package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	applyEnv(&cfg, envMap(map[string]string{
		"TELEGRAM_TOKEN":        " token ",
		"REPORT_INTERVAL_HOURS": "3",
		"WINDOW_DAYS":           "14",
		"LOOKAHEAD_DAYS":        "-1",
		"GENERATION_INTERVAL":   "15m",
		"LOG_LEVEL":             "debug",
		"REPORT_TIME":           "09:00",
	}))

	if cfg.TelegramToken != "token" {
		t.Fatalf("TelegramToken = %q", cfg.TelegramToken)
	}
	if cfg.ReportInterval != 3*time.Hour {
		t.Fatalf("ReportInterval = %v, want 3h", cfg.ReportInterval)
	}
	if cfg.WindowDays != 14 || cfg.LookaheadDays != 7 {
		t.Fatalf("WindowDays/LookaheadDays = %d/%d, want 14/7", cfg.WindowDays, cfg.LookaheadDays)
	}
	if cfg.GenerationInterval != 15*time.Minute {
		t.Fatalf("GenerationInterval = %v", cfg.GenerationInterval)
	}
	if cfg.ReportTime != "09:00" {
		t.Fatalf("ReportTime = %q", cfg.ReportTime)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "planner.yaml")
	data := []byte("http_addr: \":9090\"\nwindow_days: 21\ngeneration_interval: 30m\nlog:\n  format: json\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Defaults()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	applyEnv(&cfg, envMap(map[string]string{"WINDOW_DAYS": "10"}))

	if cfg.HTTPAddr != ":9090" || cfg.Log.Format != "json" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.WindowDays != 10 {
		t.Fatalf("env must win over file, WindowDays = %d", cfg.WindowDays)
	}
	if cfg.GenerationInterval != 30*time.Minute {
		t.Fatalf("GenerationInterval = %v", cfg.GenerationInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresAFrontend(t *testing.T) {
	t.Parallel()
	if err := Defaults().Validate(); err == nil {
		t.Fatal("expected error without telegram token and http addr")
	}
}
