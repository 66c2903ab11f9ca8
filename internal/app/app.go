// Package app wires configuration, storage and the risk service together.
// It is the shared core used by every cmd/stock-risk subcommand.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/enori/stock-skills/internal/common"
	"github.com/enori/stock-skills/internal/interfaces"
	"github.com/enori/stock-skills/internal/models"
	"github.com/enori/stock-skills/internal/scenarios"
	"github.com/enori/stock-skills/internal/services/risk"
	"github.com/enori/stock-skills/internal/storage/marketfs"
)

// App holds the initialised configuration, stores and services.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Prices      interfaces.PriceHistoryStore
	Portfolios  interfaces.PortfolioStore
	Reports     interfaces.ReportStore
	Catalog     *scenarios.Catalog
	Registry    *prometheus.Registry
	RiskService interfaces.RiskService
	StartupTime time.Time

	store *marketfs.Store
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: the explicit path, STOCKRISK_CONFIG,
// stock-risk.toml next to the binary, then config/stock-risk.toml.
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("STOCKRISK_CONFIG"); env != "" {
		return env
	}
	candidate := filepath.Join(getBinaryDir(), "stock-risk.toml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return filepath.Join("config", "stock-risk.toml")
}

// NewApp loads configuration and initialises storage, the scenario catalog,
// metrics and the risk service. configPath may be empty.
func NewApp(configPath string) (*App, error) {
	start := time.Now()
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := common.NewLoggerFromConfig(config.Logging)

	return newAppWithConfig(config, logger, start)
}

// NewAppWithConfig builds an App from an already loaded configuration.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	return newAppWithConfig(config, logger, time.Now())
}

func newAppWithConfig(config *common.Config, logger *common.Logger, start time.Time) (*App, error) {
	store, err := marketfs.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	catalog, err := scenarios.Load(config.Risk.ScenarioCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := risk.NewMetrics(registry)

	a := &App{
		Config:      config,
		Logger:      logger,
		Prices:      store,
		Portfolios:  store,
		Reports:     store,
		Catalog:     catalog,
		Registry:    registry,
		RiskService: risk.NewService(config, catalog, metrics, logger),
		StartupTime: time.Now(),
		store:       store,
	}

	logger.Info().
		Str("environment", config.Environment).
		Str("base_currency", config.BaseCurrency).
		Str("data", config.Storage.Path).
		Int("scenarios", catalog.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Application initialised")
	return a, nil
}

// BuildRequest assembles an analysis request for a stored portfolio: its snapshot,
// the price history of every non-cash position and every stored factor series.
// Missing price histories are omitted so the run reports them as insufficient data.
func (a *App) BuildRequest(ctx context.Context, name string) (*models.AnalysisRequest, error) {
	snapshot, err := a.Portfolios.GetSnapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	req := &models.AnalysisRequest{Snapshot: *snapshot}

	for _, symbol := range snapshot.Symbols() {
		h, err := a.Prices.GetPriceHistory(ctx, symbol)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				a.Logger.Warn().Str("symbol", symbol).Msg("No stored price history")
				continue
			}
			return nil, err
		}
		req.Histories = append(req.Histories, *h)
	}

	factors, err := a.Prices.ListFactors(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range factors {
		h, err := a.Prices.GetFactorHistory(ctx, f)
		if err != nil {
			return nil, err
		}
		req.Factors = append(req.Factors, *h)
	}
	return req, nil
}

// Analyze runs the risk pipeline for a stored portfolio, optionally persisting the report.
func (a *App) Analyze(ctx context.Context, name string, save bool) (*models.RiskReport, error) {
	req, err := a.BuildRequest(ctx, name)
	if err != nil {
		return nil, err
	}
	report, err := a.RiskService.Analyze(ctx, *req)
	if err != nil {
		return nil, err
	}
	if save {
		if err := a.Reports.SaveReport(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Close releases storage.
func (a *App) Close() error {
	return a.store.Close()
}
