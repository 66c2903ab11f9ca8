package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/enori/stock-skills/internal/models"
)

// DefaultTradingDaysPerYear annualises daily statistics.
const DefaultTradingDaysPerYear = 252

// PositionRisks computes historical volatility metrics for each aligned series.
// Downside volatility uses negative returns only and needs at least two of them.
func PositionRisks(aligned *AlignedReturns, tradingDays int) []models.PositionRisk {
	if tradingDays <= 0 {
		tradingDays = DefaultTradingDaysPerYear
	}
	annualise := math.Sqrt(float64(tradingDays))

	out := make([]models.PositionRisk, 0, len(aligned.Series))
	for _, s := range aligned.Series {
		values := s.Values()
		r := models.PositionRisk{Symbol: s.Symbol, Observations: len(values)}
		if len(values) >= 2 {
			r.MeanReturn, r.DailyVolatility = stat.MeanStdDev(values, nil)
			r.AnnualizedVolatility = r.DailyVolatility * annualise
		}

		var down []float64
		for _, v := range values {
			if v < 0 {
				down = append(down, v)
			}
		}
		if len(down) >= 2 {
			r.DownsideVolatility = stat.StdDev(down, nil) * annualise
		}
		out = append(out, r)
	}
	return out
}
