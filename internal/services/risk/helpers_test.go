package risk

import (
	"math/rand"
	"testing"
	"time"

	"github.com/enori/stock-skills/internal/models"
)

var testStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

// historyFromReturns compounds returns from a price of 100, one point per day.
func historyFromReturns(symbol string, returns []float64) models.PriceHistory {
	h := models.PriceHistory{Symbol: symbol, Points: make([]models.PricePoint, 0, len(returns)+1)}
	price := 100.0
	h.Points = append(h.Points, models.PricePoint{Date: testStart, Close: price})
	for i, r := range returns {
		price *= 1 + r
		h.Points = append(h.Points, models.PricePoint{Date: testStart.AddDate(0, 0, i+1), Close: price})
	}
	return h
}

func factorFromReturns(factor string, returns []float64) models.FactorHistory {
	h := historyFromReturns(factor, returns)
	return models.FactorHistory{Factor: factor, Points: h.Points}
}

func constantHistory(symbol string, n int) models.PriceHistory {
	return historyFromReturns(symbol, make([]float64, n))
}

// normalReturns draws n returns with the given daily volatility from a seeded source.
func normalReturns(rng *rand.Rand, n int, vol float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * vol
	}
	return out
}

// combine returns a*x + b*y + c elementwise.
func combine(a float64, x []float64, b float64, y []float64, c float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = a*x[i] + c
		if y != nil {
			out[i] += b * y[i]
		}
	}
	return out
}

func newRand(t *testing.T) *rand.Rand {
	t.Helper()
	return rand.New(rand.NewSource(42))
}

func alignFor(t *testing.T, histories ...models.PriceHistory) *AlignedReturns {
	t.Helper()
	return AlignReturns(histories, AlignOptions{Intersect: true})
}
