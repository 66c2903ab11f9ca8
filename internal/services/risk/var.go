package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/enori/stock-skills/internal/models"
)

// VaROptions configures value-at-risk estimation
type VaROptions struct {
	Confidences     []float64
	Horizons        []int // trading days
	Method          models.VaRMethod
	MinObservations int
}

// VaRInput is everything the estimator consumes
type VaRInput struct {
	Positions      []models.Position
	Returns        *AlignedReturns
	Correlation    *CorrelationResult
	PortfolioValue float64
}

// PortfolioVolatility returns sqrt(w' D R D w) for weights w, volatilities D and correlation R.
func PortfolioVolatility(weights, vols []float64, corr mat.Symmetric) (float64, error) {
	n := len(weights)
	if n == 0 {
		return 0, errors.New("no positions")
	}
	if len(vols) != n || corr.SymmetricDim() != n {
		return 0, fmt.Errorf("dimension mismatch: %d weights, %d volatilities, %dx%d correlation",
			n, len(vols), corr.SymmetricDim(), corr.SymmetricDim())
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, vols[i]*vols[j]*corr.At(i, j))
		}
	}
	w := mat.NewVecDense(n, append([]float64(nil), weights...))
	variance := mat.Inner(w, cov, w)
	if math.IsNaN(variance) {
		return 0, errors.New("correlation matrix has undefined entries")
	}
	// Perfect hedges can round a hair below zero.
	return math.Sqrt(math.Max(0, variance)), nil
}

// ParametricVaR returns the normal-approximation loss and expected shortfall, as
// fractions of portfolio value, at confidence over horizon days (square-root-of-time).
func ParametricVaR(weights, vols []float64, corr mat.Symmetric, confidence float64, horizon int) (float64, float64, error) {
	if err := checkLevel(confidence, horizon); err != nil {
		return 0, 0, err
	}
	sigma, err := PortfolioVolatility(weights, vols, corr)
	if err != nil {
		return 0, 0, err
	}
	return parametricFromSigma(sigma, confidence, horizon)
}

func parametricFromSigma(sigma, confidence float64, horizon int) (float64, float64, error) {
	scale := math.Sqrt(float64(horizon))
	z := distuv.UnitNormal.Quantile(confidence)
	loss := z * sigma * scale
	es := sigma * distuv.UnitNormal.Prob(z) / (1 - confidence) * scale
	return loss, es, nil
}

// HistoricalVaR returns the empirical loss quantile and expected shortfall of
// portfolio returns at confidence, scaled by sqrt(horizon). Losses are floored at zero.
func HistoricalVaR(portfolioReturns []float64, confidence float64, horizon int) (float64, float64, error) {
	if err := checkLevel(confidence, horizon); err != nil {
		return 0, 0, err
	}
	if len(portfolioReturns) == 0 {
		return 0, 0, errors.New("no portfolio returns")
	}
	sorted := append([]float64(nil), portfolioReturns...)
	sort.Float64s(sorted)

	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
	var tail []float64
	for _, r := range sorted {
		if r > q {
			break
		}
		tail = append(tail, -r)
	}
	scale := math.Sqrt(float64(horizon))
	loss := math.Max(0, -q) * scale
	es := math.Max(0, stat.Mean(tail, nil)) * scale
	return loss, math.Max(es, loss), nil
}

func checkLevel(confidence float64, horizon int) error {
	if !(confidence > 0 && confidence < 1) {
		return fmt.Errorf("confidence %v outside (0, 1)", confidence)
	}
	if horizon < 1 {
		return fmt.Errorf("horizon %d must be at least one day", horizon)
	}
	return nil
}

// EstimateVaR produces one result per (confidence, horizon) pair.
//
// auto uses the parametric method when the correlation block of the covered
// positions is complete and falls back to historical simulation otherwise;
// conservative reports the larger of the two. Too little history yields
// indeterminate results rather than an error. A portfolio whose covered positions
// all have zero variance gets a zero estimate flagged as degenerate.
func EstimateVaR(in VaRInput, opts VaROptions) []models.VaRResult {
	minObs := opts.MinObservations
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}
	method := opts.Method
	if method == "" {
		method = models.VaRMethodAuto
	}

	weights := make(map[string]float64, len(in.Positions))
	var covered float64
	hasRisky := false
	for _, p := range in.Positions {
		weights[p.Symbol] = p.Weight
		if p.IsCash {
			covered += p.Weight
			continue
		}
		hasRisky = true
	}

	var symbols []string
	var w, vols []float64
	allSymbols := in.Returns.Symbols()
	for _, s := range allSymbols {
		covered += weights[s]
		vol, ok := in.Correlation.VolatilityOf(s)
		if !ok {
			continue
		}
		symbols = append(symbols, s)
		w = append(w, weights[s])
		vols = append(vols, vol)
	}

	obs := in.Returns.Observations()
	base := models.VaRResult{Observations: obs, CoveredWeight: covered}

	var results []models.VaRResult
	for _, h := range opts.Horizons {
		for _, c := range opts.Confidences {
			r := base
			r.Confidence, r.HorizonDays = c, h
			switch {
			case !hasRisky:
				r.Method = models.VaRMethodNone
				r.Note = "portfolio holds no risky positions"
			case len(allSymbols) == 0 || obs < minObs:
				r.Method = models.VaRMethodNone
				r.Indeterminate = true
				r.Note = fmt.Sprintf("%d observations available, %d required", obs, minObs)
			case len(symbols) == 0:
				r.Method = method
				r.Degenerate = true
				r.Note = "all covered positions have zero return variance"
			default:
				estimate(&r, method, in, symbols, w, vols)
			}
			r.LossAmount = r.LossPct * in.PortfolioValue
			r.ExpectedShortfallAmount = r.ExpectedShortfallPct * in.PortfolioValue
			results = append(results, r)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].HorizonDays != results[j].HorizonDays {
			return results[i].HorizonDays < results[j].HorizonDays
		}
		return results[i].Confidence < results[j].Confidence
	})
	return results
}

func estimate(r *models.VaRResult, method models.VaRMethod, in VaRInput, symbols []string, w, vols []float64) {
	paramLoss, paramES, paramErr := 0.0, 0.0, error(nil)
	if corr, err := in.Correlation.SubMatrix(symbols); err != nil {
		paramErr = err
	} else {
		paramLoss, paramES, paramErr = ParametricVaR(w, vols, corr, r.Confidence, r.HorizonDays)
	}

	histLoss, histES, histErr := 0.0, 0.0, error(nil)
	if series, ok := portfolioReturns(in); ok {
		histLoss, histES, histErr = HistoricalVaR(series, r.Confidence, r.HorizonDays)
	} else {
		histErr = errors.New("return series are not aligned to common dates")
	}

	useParametric := func() {
		r.Method, r.LossPct, r.ExpectedShortfallPct = models.VaRMethodParametric, paramLoss, paramES
	}
	useHistorical := func() {
		r.Method, r.LossPct, r.ExpectedShortfallPct = models.VaRMethodHistorical, histLoss, histES
	}
	indeterminate := func(reason string) {
		r.Method, r.Indeterminate, r.Note = models.VaRMethodNone, true, reason
	}

	switch method {
	case models.VaRMethodParametric, models.VaRMethodAuto:
		switch {
		case paramErr == nil:
			useParametric()
		case histErr == nil:
			useHistorical()
			r.Note = "parametric unavailable (" + paramErr.Error() + "); used historical simulation"
		default:
			indeterminate(paramErr.Error())
		}
	case models.VaRMethodHistorical:
		if histErr != nil {
			indeterminate(histErr.Error())
			return
		}
		useHistorical()
	case models.VaRMethodConservative:
		switch {
		case paramErr == nil && histErr == nil:
			if histLoss > paramLoss {
				useHistorical()
			} else {
				useParametric()
			}
			r.Note = "conservative: larger of parametric and historical"
		case paramErr == nil:
			useParametric()
		case histErr == nil:
			useHistorical()
		default:
			indeterminate(paramErr.Error())
		}
	default:
		indeterminate(fmt.Sprintf("unknown method %q", method))
	}
}

// portfolioReturns weights the aligned return series into one portfolio series.
// Uncovered positions contribute nothing.
func portfolioReturns(in VaRInput) ([]float64, bool) {
	if !in.Returns.IsIntersected() || len(in.Returns.Dates) == 0 {
		return nil, false
	}
	weights := make(map[string]float64, len(in.Positions))
	for _, p := range in.Positions {
		weights[p.Symbol] = p.Weight
	}
	out := make([]float64, len(in.Returns.Dates))
	for _, s := range in.Returns.Series {
		w := weights[s.Symbol]
		for t, p := range s.Points {
			out[t] += w * p.Return
		}
	}
	return out, true
}
