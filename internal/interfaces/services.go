package interfaces

import (
	"context"

	"github.com/enori/stock-skills/internal/models"
)

// RiskService runs the portfolio risk pipeline
type RiskService interface {
	// Analyze produces a complete risk report for the request. Recoverable data
	// problems are reported as issues on the report; invalid portfolios and
	// cancelled contexts return an error.
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.RiskReport, error)
}
