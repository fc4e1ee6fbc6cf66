package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kepler/internal/execution"
	"kepler/internal/sweep"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the kepler platform.
type Config struct {
	Storage Storage     `yaml:"storage"`
	Logging Logging     `yaml:"logging"`
	Alpaca  Alpaca      `yaml:"alpaca"`
	Fetch   FetchConfig `yaml:"fetch"`
	Sweep   SweepConfig `yaml:"sweep"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// FetchConfig holds parameters for the historical data fetcher.
type FetchConfig struct {
	BatchSize       int `yaml:"batch_size"`
	MaxWorkers      int `yaml:"max_workers"`
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

// SweepConfig defines one parameter sweep: the data slice to replay, the
// execution cost model, the cache budget, and the parameter grid.
type SweepConfig struct {
	Market         string           `yaml:"market"`
	Symbols        []string         `yaml:"symbols"`
	StartDate      string           `yaml:"start_date"`
	EndDate        string           `yaml:"end_date"`
	InitialCapital float64          `yaml:"initial_capital"`
	Workers        int              `yaml:"workers"`
	CacheBudgetMB  int64            `yaml:"cache_budget_mb"` // 0 = unbounded
	RankMetric     string           `yaml:"rank_metric"`
	TopN           int              `yaml:"top_n"`
	Cost           execution.Config `yaml:"cost"`
	Grid           sweep.Grid       `yaml:"grid"`
}

// DateRange parses the configured start and end dates.
func (s SweepConfig) DateRange() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", s.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("parsing start date %q: %w", s.StartDate, err)
	}
	end, err = time.Parse("2006-01-02", s.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("parsing end date %q: %w", s.EndDate, err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date %s before start date %s", s.EndDate, s.StartDate)
	}
	return start, end, nil
}

// CacheBudgetBytes converts the configured megabyte budget to bytes.
func (s SweepConfig) CacheBudgetBytes() int64 {
	return s.CacheBudgetMB << 20
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills unset fields with working values.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Sweep.Market == "" {
		cfg.Sweep.Market = "us"
	}
	if cfg.Sweep.InitialCapital == 0 {
		cfg.Sweep.InitialCapital = 100_000
	}
	if cfg.Sweep.Workers == 0 {
		cfg.Sweep.Workers = 4
	}
	if cfg.Sweep.RankMetric == "" {
		cfg.Sweep.RankMetric = "Sharpe"
	}
}
