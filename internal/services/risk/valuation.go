// Package risk implements the portfolio risk-analytics core: return alignment,
// correlation and factor decomposition, shock sensitivity, scenario simulation,
// value-at-risk, concentration and recommendations.
package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/enori/stock-skills/internal/models"
)

// ErrInvalidPortfolio is returned for malformed portfolio input, rejected before any computation.
var ErrInvalidPortfolio = errors.New("invalid portfolio")

// weightTolerance is how far supplied weights may drift from 1.0 before the snapshot is rejected.
const weightTolerance = 1e-3

// Valuation is a validated portfolio with weights and base-currency market values
type Valuation struct {
	Positions    []models.Position
	Total        float64
	BaseCurrency string
}

// Weight returns the weight of symbol, or 0.
func (v *Valuation) Weight(symbol string) float64 {
	for _, p := range v.Positions {
		if p.Symbol == symbol {
			return p.Weight
		}
	}
	return 0
}

// ValuePortfolio validates a snapshot and settles weights and market values.
//
// When the ledger supplies weights they must sum to 1 within tolerance and are
// renormalised exactly. Otherwise weights are derived from shares x price x FX rate,
// which requires an FX rate on every foreign position.
func ValuePortfolio(snapshot models.PortfolioSnapshot, baseCurrency string) (*Valuation, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	if len(snapshot.Positions) == 0 {
		return nil, fmt.Errorf("%w: portfolio %q has no positions", ErrInvalidPortfolio, snapshot.Name)
	}

	positions := make([]models.Position, len(snapshot.Positions))
	seen := make(map[string]bool, len(snapshot.Positions))
	suppliedWeights := false

	for i, p := range snapshot.Positions {
		p.Symbol = strings.TrimSpace(p.Symbol)
		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		if p.IsCash {
			if p.Symbol == "" {
				p.Symbol = models.CashSymbol
			}
			if p.Currency == "" {
				p.Currency = base
			}
		}
		if err := validatePosition(p); err != nil {
			return nil, err
		}
		if seen[p.Symbol] {
			return nil, fmt.Errorf("%w: duplicate position %q", ErrInvalidPortfolio, p.Symbol)
		}
		seen[p.Symbol] = true
		if p.Weight > 0 {
			suppliedWeights = true
		}
		positions[i] = p
	}

	values := make([]decimal.Decimal, len(positions))
	known := make([]bool, len(positions))
	for i, p := range positions {
		fx, ok := fxRate(p, base)
		if !ok {
			if !suppliedWeights {
				return nil, fmt.Errorf("%w: position %q in %s needs an fx_rate to %s", ErrInvalidPortfolio, p.Symbol, p.Currency, base)
			}
			continue
		}
		values[i] = decimal.NewFromFloat(p.Shares).
			Mul(decimal.NewFromFloat(p.CurrentPrice)).
			Mul(fx)
		known[i] = true
	}

	if suppliedWeights {
		return fromSuppliedWeights(positions, values, known, base)
	}
	return fromMarketValues(positions, values, base)
}

func validatePosition(p models.Position) error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: position with empty symbol", ErrInvalidPortfolio)
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"shares", p.Shares},
		{"current_price", p.CurrentPrice},
		{"cost_basis", p.CostBasis},
		{"weight", p.Weight},
		{"fx_rate", p.FXRate},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%w: position %q has non-finite %s", ErrInvalidPortfolio, p.Symbol, c.name)
		}
		if c.value < 0 {
			return fmt.Errorf("%w: position %q has negative %s (%v)", ErrInvalidPortfolio, p.Symbol, c.name, c.value)
		}
	}
	if p.Weight > 1+weightTolerance {
		return fmt.Errorf("%w: position %q weight %.4f exceeds 1", ErrInvalidPortfolio, p.Symbol, p.Weight)
	}
	for factor, v := range p.SensitivityOverrides {
		if _, _, ok := models.ParseFactor(factor); !ok {
			return fmt.Errorf("%w: position %q override for unrecognised factor %q", ErrInvalidPortfolio, p.Symbol, factor)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: position %q override for %q is not finite", ErrInvalidPortfolio, p.Symbol, factor)
		}
	}
	return nil
}

// fxRate returns the base-currency value of one unit of the position currency.
func fxRate(p models.Position, base string) (decimal.Decimal, bool) {
	if !p.IsForeign(base) {
		return decimal.NewFromInt(1), true
	}
	if p.FXRate > 0 {
		return decimal.NewFromFloat(p.FXRate), true
	}
	return decimal.Zero, false
}

func fromSuppliedWeights(positions []models.Position, values []decimal.Decimal, known []bool, base string) (*Valuation, error) {
	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(decimal.NewFromFloat(p.Weight))
	}
	if math.Abs(sum.InexactFloat64()-1) > weightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %.6f, want 1", ErrInvalidPortfolio, sum.InexactFloat64())
	}

	// Total is implied from the valued positions; every market value then follows
	// its weight so amounts stay consistent with the supplied allocation.
	knownValue, knownWeight := decimal.Zero, decimal.Zero
	for i, p := range positions {
		if known[i] {
			knownValue = knownValue.Add(values[i])
			knownWeight = knownWeight.Add(decimal.NewFromFloat(p.Weight))
		}
	}
	total := decimal.Zero
	if knownWeight.IsPositive() {
		total = knownValue.Div(knownWeight).Mul(sum)
	}

	for i := range positions {
		w := decimal.NewFromFloat(positions[i].Weight).Div(sum)
		positions[i].Weight = w.InexactFloat64()
		positions[i].MarketValue = w.Mul(total).InexactFloat64()
	}

	return &Valuation{Positions: positions, Total: total.InexactFloat64(), BaseCurrency: base}, nil
}

func fromMarketValues(positions []models.Position, values []decimal.Decimal, base string) (*Valuation, error) {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: portfolio has zero market value and no weights", ErrInvalidPortfolio)
	}
	for i := range positions {
		positions[i].MarketValue = values[i].InexactFloat64()
		positions[i].Weight = values[i].Div(total).InexactFloat64()
	}
	return &Valuation{Positions: positions, Total: total.InexactFloat64(), BaseCurrency: base}, nil
}
