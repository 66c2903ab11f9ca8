package risk

import (
	"sort"

	"github.com/enori/stock-skills/internal/models"
)

// SensitivityTable maps (symbol, factor) to a resolved sensitivity
type SensitivityTable struct {
	entries []models.Sensitivity
	index   map[string]map[string]int
}

// ResolveSensitivities picks one sensitivity per (position, factor).
//
// Preference order: the regression coefficient, then the position's override, then
// a structural translation exposure of 1.0 to the position's own currency when it
// is foreign. Cash carries no sensitivities.
func ResolveSensitivities(positions []models.Position, exposures []models.FactorExposure, baseCurrency string) *SensitivityTable {
	t := &SensitivityTable{index: make(map[string]map[string]int)}

	byExposure := make(map[string]models.FactorExposure, len(exposures))
	for _, e := range exposures {
		byExposure[e.Symbol] = e
	}

	for _, p := range positions {
		if p.IsCash {
			continue
		}
		exp, hasExposure := byExposure[p.Symbol]

		candidates := make(map[string]bool)
		for _, c := range exp.Coefficients {
			candidates[c.Factor] = true
		}
		for f := range p.SensitivityOverrides {
			candidates[f] = true
		}
		structural := ""
		if p.IsForeign(baseCurrency) {
			structural = models.CurrencyFactor(p.Currency)
			candidates[structural] = true
		}

		factors := make([]string, 0, len(candidates))
		for f := range candidates {
			factors = append(factors, f)
		}
		sort.Strings(factors)

		for _, f := range factors {
			s := models.Sensitivity{Symbol: p.Symbol, Factor: f}
			if beta, ok := exp.Beta(f); hasExposure && ok {
				s.Value, s.Source = beta, models.SensitivityRegression
			} else if v, ok := p.SensitivityOverrides[f]; ok {
				s.Value, s.Source = v, models.SensitivityOverride
			} else if f == structural {
				s.Value, s.Source = 1, models.SensitivityStructural
			} else {
				continue
			}
			t.add(s)
		}
	}
	return t
}

func (t *SensitivityTable) add(s models.Sensitivity) {
	if t.index[s.Symbol] == nil {
		t.index[s.Symbol] = make(map[string]int)
	}
	t.index[s.Symbol][s.Factor] = len(t.entries)
	t.entries = append(t.entries, s)
}

// Lookup returns the sensitivity of symbol to factor.
func (t *SensitivityTable) Lookup(symbol, factor string) (models.Sensitivity, bool) {
	i, ok := t.index[symbol][factor]
	if !ok {
		return models.Sensitivity{}, false
	}
	return t.entries[i], true
}

// Impact returns sensitivity x shock for symbol and factor. A position with no
// sensitivity to the factor has zero impact.
func (t *SensitivityTable) Impact(symbol, factor string, shock float64) (float64, models.Sensitivity, bool) {
	s, ok := t.Lookup(symbol, factor)
	if !ok {
		return 0, models.Sensitivity{}, false
	}
	return s.Value * shock, s, true
}

// Exposed reports whether any position has a sensitivity to factor.
func (t *SensitivityTable) Exposed(factor string) bool {
	for _, factors := range t.index {
		if _, ok := factors[factor]; ok {
			return true
		}
	}
	return false
}

// All returns every sensitivity in position order, factors sorted within a position.
func (t *SensitivityTable) All() []models.Sensitivity {
	out := make([]models.Sensitivity, len(t.entries))
	copy(out, t.entries)
	return out
}
