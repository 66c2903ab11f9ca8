package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/enori/stock-skills/internal/models"
)

// FactorOptions configures factor decomposition
type FactorOptions struct {
	MinObservations int
	BaseCurrency    string
}

// FactorResult holds per-position exposures and any factors that could not be estimated
type FactorResult struct {
	Exposures []models.FactorExposure
	Issues    []models.Issue
}

// Exposure returns the exposure for symbol.
func (r *FactorResult) Exposure(symbol string) (models.FactorExposure, bool) {
	for _, e := range r.Exposures {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return models.FactorExposure{}, false
}

// DecomposeFactors regresses each position's returns on the factor return series
// that apply to it (see models.ApplicableFactors). Factors without a usable series
// are left out and recorded; the remaining ones are still estimated.
//
// Positions absent from returns (excluded upstream) and cash are skipped.
// factors may be nil, in which case every exposure is empty and partial.
func DecomposeFactors(positions []models.Position, returns *AlignedReturns, factors *AlignedReturns, opts FactorOptions) *FactorResult {
	minObs := opts.MinObservations
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}

	type job struct {
		position models.Position
		series   models.ReturnSeries
	}
	var jobs []job
	for _, p := range positions {
		if p.IsCash {
			continue
		}
		s, ok := returns.Get(p.Symbol)
		if !ok {
			continue
		}
		jobs = append(jobs, job{position: p, series: s})
	}

	exposures := make([]models.FactorExposure, len(jobs))
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			exposures[i] = decompose(jobs[i].position, jobs[i].series, factors, minObs, opts.BaseCurrency)
		}(i)
	}
	wg.Wait()

	res := &FactorResult{Exposures: exposures}
	for _, e := range exposures {
		for _, g := range e.Missing {
			res.Issues = append(res.Issues, models.Issue{
				Kind:    models.IssueIndeterminateFactor,
				Subject: e.Symbol,
				Detail:  fmt.Sprintf("%s: %s", g.Factor, g.Reason),
			})
		}
	}
	return res
}

func decompose(p models.Position, y models.ReturnSeries, factors *AlignedReturns, minObs int, base string) models.FactorExposure {
	exp := models.FactorExposure{
		Symbol:        p.Symbol,
		Coefficients:  []models.FactorCoefficient{},
		Method:        models.RegressionNone,
		ResidualShare: 1,
		Observations:  y.Len(),
	}
	gap := func(factor, reason string) {
		exp.Missing = append(exp.Missing, models.FactorGap{Factor: factor, Reason: reason})
	}

	var available []models.ReturnSeries
	for _, f := range models.ApplicableFactors(p, base) {
		if factors == nil {
			gap(f, "no reference series")
			continue
		}
		s, ok := factors.Get(f)
		if !ok {
			if ex, excluded := factors.Exclusion(f); excluded {
				gap(f, "insufficient factor history: "+ex.Detail)
			} else {
				gap(f, "no reference series")
			}
			continue
		}
		available = append(available, s)
	}

	if isDegenerate(y.Values()) {
		for _, s := range available {
			gap(s.Symbol, "position return variance is zero")
		}
		exp.ResidualShare = 0
		exp.Partial = true
		return exp
	}

	for len(available) > 0 {
		ys, xs := jointValues(y, available)
		if len(ys) < minObs {
			drop, overlap := shortestOverlap(y, available)
			gap(available[drop].Symbol, fmt.Sprintf("only %d overlapping observations, %d required", overlap, minObs))
			available = append(available[:drop], available[drop+1:]...)
			continue
		}
		if j := firstDegenerate(xs); j >= 0 {
			gap(available[j].Symbol, "factor return variance is zero over the window")
			available = append(available[:j], available[j+1:]...)
			continue
		}

		alpha, betas, method := regress(ys, xs)
		exp.Method = method
		exp.Alpha = alpha
		exp.Observations = len(ys)
		for j, s := range available {
			exp.Coefficients = append(exp.Coefficients, models.FactorCoefficient{Factor: s.Symbol, Beta: betas[j]})
		}
		exp.ResidualVariance, exp.ResidualShare = residuals(ys, xs, alpha, betas)
		exp.RSquared = 1 - exp.ResidualShare
		break
	}

	exp.Partial = len(exp.Missing) > 0
	return exp
}

// regress fits y = alpha + sum(beta_j * x_j) by ordinary least squares.
// Ill-conditioned or under-determined systems fall back to one univariate
// regression per factor.
func regress(ys []float64, xs [][]float64) (float64, []float64, string) {
	n, k := len(ys), len(xs)
	if n > k+1 {
		design := mat.NewDense(n, k+1, nil)
		for t := 0; t < n; t++ {
			design.Set(t, 0, 1)
			for j := 0; j < k; j++ {
				design.Set(t, j+1, xs[j][t])
			}
		}
		var b mat.VecDense
		if err := b.SolveVec(design, mat.NewVecDense(n, ys)); err == nil && finiteVec(&b) {
			betas := make([]float64, k)
			for j := range betas {
				betas[j] = b.AtVec(j + 1)
			}
			return b.AtVec(0), betas, models.RegressionOLS
		}
	}

	betas := make([]float64, k)
	alpha := stat.Mean(ys, nil)
	for j := range xs {
		_, betas[j] = stat.LinearRegression(xs[j], ys, nil, false)
		alpha -= betas[j] * stat.Mean(xs[j], nil)
	}
	return alpha, betas, models.RegressionUnivariateOLS
}

// residuals returns the residual variance (degrees-of-freedom adjusted) and the
// residual share of total variance, clamped to [0, 1].
func residuals(ys []float64, xs [][]float64, alpha float64, betas []float64) (float64, float64) {
	mean := stat.Mean(ys, nil)
	var ssRes, ssTot float64
	for t, y := range ys {
		fitted := alpha
		for j := range xs {
			fitted += betas[j] * xs[j][t]
		}
		e := y - fitted
		ssRes += e * e
		d := y - mean
		ssTot += d * d
	}
	dof := len(ys) - len(xs) - 1
	if dof <= 0 {
		dof = len(ys)
	}
	share := 0.0
	if ssTot > 0 {
		share = math.Max(0, math.Min(1, ssRes/ssTot))
	}
	return ssRes / float64(dof), share
}

// jointValues returns y and every factor on the dates they all share.
func jointValues(y models.ReturnSeries, factors []models.ReturnSeries) ([]float64, [][]float64) {
	lookups := make([]map[time.Time]float64, len(factors))
	for j, f := range factors {
		lookups[j] = make(map[time.Time]float64, f.Len())
		for _, p := range f.Points {
			lookups[j][p.Date] = p.Return
		}
	}
	var ys []float64
	xs := make([][]float64, len(factors))
	for _, p := range y.Points {
		row := make([]float64, len(factors))
		ok := true
		for j := range lookups {
			v, found := lookups[j][p.Date]
			if !found {
				ok = false
				break
			}
			row[j] = v
		}
		if !ok {
			continue
		}
		ys = append(ys, p.Return)
		for j := range row {
			xs[j] = append(xs[j], row[j])
		}
	}
	return ys, xs
}

func shortestOverlap(y models.ReturnSeries, factors []models.ReturnSeries) (int, int) {
	idx, best := 0, math.MaxInt
	for j, f := range factors {
		x, _ := pairValues(y, f)
		if len(x) < best {
			idx, best = j, len(x)
		}
	}
	return idx, best
}

func firstDegenerate(xs [][]float64) int {
	for j, x := range xs {
		if isDegenerate(x) {
			return j
		}
	}
	return -1
}

func finiteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
