package risk

import (
	"sort"

	"github.com/enori/stock-skills/internal/models"
)

// cashSector is the sector group of cash pseudo-positions.
const cashSector = "Cash"

// HHI returns the Herfindahl-Hirschman index, the sum of squared weight shares.
// Weights are taken as shares of their own total, so the result lies in [1/n, 1]
// for n positive weights. Returns 0 when the total is zero.
func HHI(weights []float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	var h float64
	for _, w := range weights {
		s := w / total
		h += s * s
	}
	return h
}

// AnalyzeConcentration computes HHI by symbol, sector and currency. It needs only
// weights, so positions without price history are included.
func AnalyzeConcentration(positions []models.Position, baseCurrency string) []models.ConcentrationResult {
	keyFns := []struct {
		dimension string
		key       func(models.Position) string
	}{
		{models.DimensionSymbol, func(p models.Position) string { return p.Symbol }},
		{models.DimensionSector, func(p models.Position) string {
			if p.IsCash {
				return cashSector
			}
			return p.SectorGroup()
		}},
		{models.DimensionCurrency, func(p models.Position) string {
			if p.Currency == "" {
				return baseCurrency
			}
			return p.Currency
		}},
	}

	results := make([]models.ConcentrationResult, 0, len(keyFns))
	for _, k := range keyFns {
		results = append(results, concentrationBy(positions, k.dimension, k.key))
	}
	return results
}

func concentrationBy(positions []models.Position, dimension string, key func(models.Position) string) models.ConcentrationResult {
	totals := make(map[string]float64)
	for _, p := range positions {
		totals[key(p)] += p.Weight
	}

	groups := make([]models.GroupWeight, 0, len(totals))
	weights := make([]float64, 0, len(totals))
	for name, w := range totals {
		groups = append(groups, models.GroupWeight{Name: name, Weight: w})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Weight != groups[j].Weight {
			return groups[i].Weight > groups[j].Weight
		}
		return groups[i].Name < groups[j].Name
	})
	for _, g := range groups {
		weights = append(weights, g.Weight)
	}

	h := HHI(weights)
	res := models.ConcentrationResult{Dimension: dimension, HHI: h, Groups: groups}
	if h > 0 {
		res.EffectiveN = 1 / h
	}
	return res
}
