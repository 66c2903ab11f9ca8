// Package common provides shared utilities for the stock-skills risk core
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for stock-risk
type Config struct {
	Environment  string        `toml:"environment"`
	BaseCurrency string        `toml:"base_currency"` // currency portfolio values and weights are expressed in
	Server       ServerConfig  `toml:"server"`
	Storage      StorageConfig `toml:"storage"`
	Logging      LoggingConfig `toml:"logging"`
	Risk         RiskConfig    `toml:"risk"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// AnalyzeRate limits analysis requests per second across all clients; 0 disables.
	AnalyzeRate  float64 `toml:"analyze_rate"`
	AnalyzeBurst int     `toml:"analyze_burst"`
}

// StorageConfig holds the location of the file-backed market and portfolio data
type StorageConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// RiskConfig holds risk-analytics parameters
type RiskConfig struct {
	MinObservations    int            `toml:"min_observations"`
	LookbackDays       int            `toml:"lookback_days"`
	ConfidenceLevels   []float64      `toml:"confidence_levels"`
	Horizons           []int          `toml:"horizons"` // trading days
	VaRMethod          string         `toml:"var_method"`
	TradingDaysPerYear int            `toml:"trading_days_per_year"`
	ScenarioCatalog    string         `toml:"scenario_catalog"` // path to a YAML catalog; empty uses the built-in catalog
	Thresholds         RiskThresholds `toml:"thresholds"`
}

// RiskThresholds are the fixed thresholds used by the recommender.
// Loss thresholds are positive fractions of portfolio value.
type RiskThresholds struct {
	SymbolHHIWarning     float64 `toml:"symbol_hhi_warning"`
	SymbolHHICritical    float64 `toml:"symbol_hhi_critical"`
	SectorHHIWarning     float64 `toml:"sector_hhi_warning"`
	SectorHHICritical    float64 `toml:"sector_hhi_critical"`
	PositionWeightLimit  float64 `toml:"position_weight_limit"`
	ForeignCurrencyLimit float64 `toml:"foreign_currency_limit"`
	VaRWarning           float64 `toml:"var_warning"`
	VaRCritical          float64 `toml:"var_critical"`
	ScenarioLossWarning  float64 `toml:"scenario_loss_warning"`
	ScenarioLossCritical float64 `toml:"scenario_loss_critical"`
	CorrelationLimit     float64 `toml:"correlation_limit"`
	CorrelationMinWeight float64 `toml:"correlation_min_weight"`
	MarketBetaLimit      float64 `toml:"market_beta_limit"`
	SentimentLimit       float64 `toml:"sentiment_limit"`
	SentimentMinWeight   float64 `toml:"sentiment_min_weight"`
}

// DefaultRiskThresholds returns the built-in recommender thresholds
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		SymbolHHIWarning:     0.25,
		SymbolHHICritical:    0.50,
		SectorHHIWarning:     0.40,
		SectorHHICritical:    0.60,
		PositionWeightLimit:  0.20,
		ForeignCurrencyLimit: 0.50,
		VaRWarning:           0.05,
		VaRCritical:          0.10,
		ScenarioLossWarning:  0.15,
		ScenarioLossCritical: 0.25,
		CorrelationLimit:     0.80,
		CorrelationMinWeight: 0.05,
		MarketBetaLimit:      1.20,
		SentimentLimit:       -0.50,
		SentimentMinWeight:   0.05,
	}
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		BaseCurrency: "JPY",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			AnalyzeRate:  5,
			AnalyzeBurst: 10,
		},
		Storage: StorageConfig{
			Path: "data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Risk: RiskConfig{
			MinObservations:    20,
			LookbackDays:       365,
			ConfidenceLevels:   []float64{0.95, 0.99},
			Horizons:           []int{1, 10},
			VaRMethod:          "auto",
			TradingDaysPerYear: 252,
			Thresholds:         DefaultRiskThresholds(),
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKRISK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("STOCKRISK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("STOCKRISK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("STOCKRISK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("STOCKRISK_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Clean(path)
	}

	if bc := os.Getenv("STOCKRISK_BASE_CURRENCY"); bc != "" {
		config.BaseCurrency = bc
	}

	if n := os.Getenv("STOCKRISK_MIN_OBSERVATIONS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Risk.MinObservations = v
		}
	}

	if path := os.Getenv("STOCKRISK_SCENARIO_CATALOG"); path != "" {
		config.Risk.ScenarioCatalog = path
	}
}

// Validate normalises the configuration and rejects values the risk core cannot use.
func (c *Config) Validate() error {
	c.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.BaseCurrency))
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("base_currency must be a 3-letter code, got %q", c.BaseCurrency)
	}

	r := &c.Risk
	if r.MinObservations < 2 {
		return fmt.Errorf("risk.min_observations must be at least 2, got %d", r.MinObservations)
	}
	if r.TradingDaysPerYear <= 0 {
		r.TradingDaysPerYear = 252
	}
	for _, cl := range r.ConfidenceLevels {
		if cl <= 0.5 || cl >= 1 {
			return fmt.Errorf("risk.confidence_levels entries must be in (0.5, 1), got %v", cl)
		}
	}
	for _, h := range r.Horizons {
		if h < 1 {
			return fmt.Errorf("risk.horizons entries must be >= 1 day, got %d", h)
		}
	}
	switch strings.ToLower(r.VaRMethod) {
	case "", "auto":
		r.VaRMethod = "auto"
	case "parametric", "historical", "conservative":
		r.VaRMethod = strings.ToLower(r.VaRMethod)
	default:
		return fmt.Errorf("risk.var_method %q is not one of auto, parametric, historical, conservative", r.VaRMethod)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
