// Package interfaces defines service and storage contracts for the risk core
package interfaces

import (
	"context"

	"github.com/enori/stock-skills/internal/models"
)

// PriceHistoryStore provides daily closing prices for symbols and factors.
// Implementations return an error wrapping os.ErrNotExist for unknown keys.
type PriceHistoryStore interface {
	GetPriceHistory(ctx context.Context, symbol string) (*models.PriceHistory, error)
	SavePriceHistory(ctx context.Context, history *models.PriceHistory) error

	// GetFactorHistory returns the level series of a factor such as "market",
	// "sector:Technology" or "currency:USD".
	GetFactorHistory(ctx context.Context, factor string) (*models.FactorHistory, error)
	SaveFactorHistory(ctx context.Context, history *models.FactorHistory) error

	// ListFactors returns the names of every stored factor series, sorted.
	ListFactors(ctx context.Context) ([]string, error)
}

// PortfolioStore provides portfolio snapshots
type PortfolioStore interface {
	GetSnapshot(ctx context.Context, name string) (*models.PortfolioSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	ListSnapshots(ctx context.Context) ([]string, error)
}

// ReportStore persists generated risk reports keyed by report ID
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.RiskReport) error
	GetReport(ctx context.Context, id string) (*models.RiskReport, error)
}
