// Package config loads the excavator YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"excavator/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the excavator.
type Config struct {
	Storage Storage `yaml:"storage"`
	Broker  Broker  `yaml:"broker"`
	Logging Logging `yaml:"logging"`
	Dig     Dig     `yaml:"dig"`
}

// Storage holds paths and formats for data persistence.
type Storage struct {
	ResultsDir    string `yaml:"results_dir"`
	MirrorParquet bool   `yaml:"mirror_parquet"`
}

// Broker holds the upstream market-data API endpoint. The access token is
// deliberately not a YAML field: it is read from the environment only.
type Broker struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	AccessToken    string `yaml:"-"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dig controls the polling loop: what to fetch and how often.
type Dig struct {
	Symbol           string `yaml:"symbol"`
	VolatilitySymbol string `yaml:"volatility_symbol"`
	MinDTE           int    `yaml:"min_dte"`
	MaxDTE           int    `yaml:"max_dte"`
	IntervalMinutes  int    `yaml:"interval_minutes"`
	ContractType     string `yaml:"contract_type"`
	Product          string `yaml:"product"`
	OpenDelaySeconds int    `yaml:"open_delay_seconds"`
	MaxLookaheadDays int    `yaml:"max_lookahead_days"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, then applies environment variable overrides and defaults.
// A missing file is not an error; the defaults mirror the historical SPX
// collector setup.
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

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RESULTS_DIR"); v != "" {
		cfg.Storage.ResultsDir = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_ACCESS_TOKEN"); v != "" {
		cfg.Broker.AccessToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DIG_SYMBOL"); v != "" {
		cfg.Dig.Symbol = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.ResultsDir == "" {
		cfg.Storage.ResultsDir = "./results"
	}
	if cfg.Broker.TimeoutSeconds == 0 {
		cfg.Broker.TimeoutSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Dig.Symbol == "" {
		cfg.Dig.Symbol = "$SPX.X"
	}
	if cfg.Dig.VolatilitySymbol == "" {
		cfg.Dig.VolatilitySymbol = "$VIX.X"
	}
	if cfg.Dig.MaxDTE == 0 {
		cfg.Dig.MaxDTE = 60
	}
	if cfg.Dig.IntervalMinutes == 0 {
		cfg.Dig.IntervalMinutes = 1
	}
	if cfg.Dig.ContractType == "" {
		cfg.Dig.ContractType = string(domain.ContractAll)
	}
	if cfg.Dig.Product == "" {
		cfg.Dig.Product = "IND"
	}
	if cfg.Dig.OpenDelaySeconds == 0 {
		cfg.Dig.OpenDelaySeconds = 15
	}
	if cfg.Dig.MaxLookaheadDays == 0 {
		cfg.Dig.MaxLookaheadDays = 10
	}
}

// Validate checks that all required fields are set and coherent.
func (c *Config) Validate() error {
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required")
	}
	if c.Broker.AccessToken == "" {
		return fmt.Errorf("BROKER_ACCESS_TOKEN is required")
	}
	if c.Dig.Symbol == "" {
		return fmt.Errorf("dig.symbol is required")
	}
	if !domain.ContractType(c.Dig.ContractType).Valid() {
		return fmt.Errorf("dig.contract_type must be PUT, CALL, or ALL, got %q", c.Dig.ContractType)
	}
	if c.Dig.MinDTE < 0 || c.Dig.MaxDTE < c.Dig.MinDTE {
		return fmt.Errorf("dig dte window [%d, %d] is invalid", c.Dig.MinDTE, c.Dig.MaxDTE)
	}
	if c.Dig.IntervalMinutes < 1 {
		return fmt.Errorf("dig.interval_minutes must be at least 1")
	}
	if c.Dig.MaxLookaheadDays < 1 {
		return fmt.Errorf("dig.max_lookahead_days must be at least 1")
	}
	return nil
}
