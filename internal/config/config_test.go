package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
storage:
  data_dir: /tmp/kepler-data
  sqlite_path: /tmp/kepler.db
logging:
  level: debug
  format: text
alpaca:
  api_key: file-key
  api_secret: file-secret
sweep:
  market: us
  symbols: [AAPL, MSFT]
  start_date: "2023-01-02"
  end_date: "2023-12-29"
  initial_capital: 250000
  workers: 8
  cache_budget_mb: 64
  rank_metric: Sortino
  top_n: 5
  cost:
    slippage_bps: 5
    impact_bps_per_100: 1
    commission_per_share: 0.005
    min_commission: 1
    max_participation: 0.05
    noise_bps: 10
    seed: 42
  grid:
    strategies:
      - name: sma-cross
        params:
          size: [100, 200]
    short_windows: [5, 10]
    long_windows: [20]
    vol_windows: [10]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kepler.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/kepler-data" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Sweep.InitialCapital != 250000 || cfg.Sweep.Workers != 8 {
		t.Errorf("sweep = %+v", cfg.Sweep)
	}
	if cfg.Sweep.Cost.SlippageBps != 5 || cfg.Sweep.Cost.Seed != 42 {
		t.Errorf("cost = %+v", cfg.Sweep.Cost)
	}
	if got := cfg.Sweep.CacheBudgetBytes(); got != 64<<20 {
		t.Errorf("cache budget = %d bytes", got)
	}
	if n := len(cfg.Sweep.Grid.Expand()); n != 4 {
		t.Errorf("grid expands to %d configs, want 4", n)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  data_dir: /tmp/d\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default level = %q", cfg.Logging.Level)
	}
	if cfg.Sweep.Market != "us" {
		t.Errorf("default market = %q", cfg.Sweep.Market)
	}
	if cfg.Sweep.InitialCapital != 100_000 || cfg.Sweep.Workers != 4 {
		t.Errorf("sweep defaults = %+v", cfg.Sweep)
	}
	if cfg.Sweep.RankMetric != "Sharpe" {
		t.Errorf("default rank metric = %q", cfg.Sweep.RankMetric)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ALPACA_API_KEY", "alpaca-env-key")
	t.Setenv("APCA_API_KEY_ID", "apca-key") // canonical name wins

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("data_dir = %q, want env override", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want env override", cfg.Logging.Level)
	}
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("api key = %q, want APCA_API_KEY_ID to win", cfg.Alpaca.APIKey)
	}
	if cfg.Alpaca.APISecret != "file-secret" {
		t.Errorf("api secret = %q, want file value kept", cfg.Alpaca.APISecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDateRange(t *testing.T) {
	s := SweepConfig{StartDate: "2023-01-02", EndDate: "2023-12-29"}
	start, end, err := s.DateRange()
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	if !start.Equal(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}

	bad := SweepConfig{StartDate: "2023-12-29", EndDate: "2023-01-02"}
	if _, _, err := bad.DateRange(); err == nil {
		t.Error("expected error for end before start")
	}

	malformed := SweepConfig{StartDate: "01/02/2023", EndDate: "2023-12-29"}
	if _, _, err := malformed.DateRange(); err == nil {
		t.Error("expected error for malformed date")
	}
}
