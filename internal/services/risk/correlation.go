package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/enori/stock-skills/internal/models"
)

// degenerateVariance is the variance at or below which a return series is treated as constant.
const degenerateVariance = 1e-20

// CorrelationResult holds the correlation matrix and per-symbol statistics it was built from
type CorrelationResult struct {
	Matrix     models.CorrelationMatrix
	Sym        *mat.SymDense // same values as Matrix, NaN where undefined; nil when empty
	Volatility []float64     // sample standard deviation per symbol, matrix order
	Degenerate []string
	Issues     []models.Issue
}

// Correlate computes the pairwise Pearson correlation matrix over aligned returns.
// Zero-variance symbols have undefined (NaN) rows and columns, diagonal included.
func Correlate(aligned *AlignedReturns) *CorrelationResult {
	n := len(aligned.Series)
	res := &CorrelationResult{
		Matrix: models.CorrelationMatrix{
			Symbols: aligned.Symbols(),
			Values:  make([][]float64, n),
		},
		Volatility: make([]float64, n),
	}
	if n == 0 {
		return res
	}

	values := make([][]float64, n)
	degenerate := make([]bool, n)
	for i, s := range aligned.Series {
		values[i] = s.Values()
		res.Matrix.Values[i] = make([]float64, n)
		if isDegenerate(values[i]) {
			degenerate[i] = true
			res.Degenerate = append(res.Degenerate, s.Symbol)
			res.Issues = append(res.Issues, models.Issue{
				Kind:    models.IssueDegenerateVariance,
				Subject: s.Symbol,
				Detail:  "zero return variance over the window; correlation undefined",
			})
			continue
		}
		res.Volatility[i] = stat.StdDev(values[i], nil)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var c float64
			switch {
			case degenerate[i] || degenerate[j]:
				c = math.NaN()
			case i == j:
				c = 1
			default:
				c = pearson(aligned.Series[i], aligned.Series[j])
			}
			res.Matrix.Values[i][j] = c
			res.Matrix.Values[j][i] = c
			sym.SetSym(i, j, c)
		}
	}
	res.Sym = sym
	return res
}

// pearson returns the correlation of two series over their shared dates, clamped to [-1, 1].
func pearson(a, b models.ReturnSeries) float64 {
	x, y := pairValues(a, b)
	if len(x) < 2 || isDegenerate(x) || isDegenerate(y) {
		return math.NaN()
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return c
	}
	return math.Max(-1, math.Min(1, c))
}

func isDegenerate(values []float64) bool {
	if len(values) < 2 {
		return true
	}
	return stat.Variance(values, nil) <= degenerateVariance
}

// SubMatrix extracts the correlation block for the given symbols in the given order.
// Returns an error if a symbol is unknown or any entry in the block is undefined.
func (r *CorrelationResult) SubMatrix(symbols []string) (*mat.SymDense, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}
	idx := make([]int, len(symbols))
	for k, s := range symbols {
		idx[k] = r.Matrix.Index(s)
		if idx[k] < 0 {
			return nil, fmt.Errorf("symbol %s not in correlation matrix", s)
		}
	}
	out := mat.NewSymDense(len(symbols), nil)
	for a := range idx {
		for b := a; b < len(idx); b++ {
			v := r.Matrix.Values[idx[a]][idx[b]]
			if math.IsNaN(v) {
				return nil, fmt.Errorf("correlation %s/%s undefined", symbols[a], symbols[b])
			}
			out.SetSym(a, b, v)
		}
	}
	return out, nil
}

// VolatilityOf returns the sample volatility of symbol and whether it is defined.
func (r *CorrelationResult) VolatilityOf(symbol string) (float64, bool) {
	i := r.Matrix.Index(symbol)
	if i < 0 || math.IsNaN(r.Matrix.Values[i][i]) {
		return 0, false
	}
	return r.Volatility[i], true
}
