package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/enori/stock-skills/internal/models"
)

func corr2(rho float64) *mat.SymDense {
	return mat.NewSymDense(2, []float64{1, rho, rho, 1})
}

func TestPortfolioVolatility_TwoAssets(t *testing.T) {
	vols := []float64{0.02, 0.02}

	mixed, err := PortfolioVolatility([]float64{0.7, 0.3}, vols, corr2(0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.02*math.Sqrt(0.79), mixed, 1e-12)

	hedged, err := PortfolioVolatility([]float64{0.7, 0.3}, vols, corr2(-1))
	require.NoError(t, err)
	assert.InDelta(t, 0.008, hedged, 1e-12)

	alone, err := PortfolioVolatility([]float64{1}, vols[:1], mat.NewSymDense(1, []float64{1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.02, alone, 1e-12)

	_, err = PortfolioVolatility([]float64{0.5, 0.5}, vols[:1], corr2(0))
	assert.Error(t, err)
	_, err = PortfolioVolatility(nil, nil, corr2(0))
	assert.Error(t, err)
}

func TestParametricVaR_BetweenHedgedAndSingleAsset(t *testing.T) {
	vols := []float64{0.02, 0.02}
	for _, c := range []float64{0.95, 0.99} {
		mixed, _, err := ParametricVaR([]float64{0.7, 0.3}, vols, corr2(0.5), c, 1)
		require.NoError(t, err)
		hedged, _, err := ParametricVaR([]float64{0.7, 0.3}, vols, corr2(-1), c, 1)
		require.NoError(t, err)
		aloneA, _, err := ParametricVaR([]float64{1}, vols[:1], mat.NewSymDense(1, []float64{1}), c, 1)
		require.NoError(t, err)
		aloneB, _, err := ParametricVaR([]float64{1}, vols[1:], mat.NewSymDense(1, []float64{1}), c, 1)
		require.NoError(t, err)

		assert.Greater(t, mixed, hedged)
		assert.Less(t, mixed, aloneA)
		assert.Less(t, mixed, aloneB)
	}
}

func TestParametricVaR_KnownValuesAndScaling(t *testing.T) {
	one := mat.NewSymDense(1, []float64{1})

	loss, es, err := ParametricVaR([]float64{1}, []float64{0.01}, one, 0.95, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.6448536*0.01, loss, 1e-8)
	assert.Greater(t, es, loss)

	loss10, es10, err := ParametricVaR([]float64{1}, []float64{0.01}, one, 0.95, 10)
	require.NoError(t, err)
	assert.InDelta(t, loss*math.Sqrt(10), loss10, 1e-12)
	assert.InDelta(t, es*math.Sqrt(10), es10, 1e-12)

	_, _, err = ParametricVaR([]float64{1}, []float64{0.01}, one, 1.0, 1)
	assert.Error(t, err)
	_, _, err = ParametricVaR([]float64{1}, []float64{0.01}, one, 0.95, 0)
	assert.Error(t, err)
}

func TestHistoricalVaR(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 1000 // -0.050 .. 0.049
	}

	loss95, es95, err := HistoricalVaR(returns, 0.95, 1)
	require.NoError(t, err)
	loss99, es99, err := HistoricalVaR(returns, 0.99, 1)
	require.NoError(t, err)

	// The empirical quantile lands on one of the five (or one) worst observations.
	assert.InDelta(t, 0.0455, loss95, 0.00051)
	assert.InDelta(t, 0.0495, loss99, 0.00051)
	assert.GreaterOrEqual(t, loss99, loss95)
	assert.GreaterOrEqual(t, es95, loss95)
	assert.GreaterOrEqual(t, es99, loss99)

	gains := []float64{0.01, 0.02, 0.03}
	loss, es, err := HistoricalVaR(gains, 0.95, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, loss)
	assert.Equal(t, 0.0, es)

	_, _, err = HistoricalVaR(nil, 0.95, 1)
	assert.Error(t, err)
}

func varFixture(t *testing.T, n int) ([]models.Position, *AlignedReturns, *CorrelationResult) {
	t.Helper()
	rng := newRand(t)
	m := normalReturns(rng, n, 0.01)
	positions := []models.Position{
		{Symbol: "A", Currency: "JPY", Weight: 0.5},
		{Symbol: "B", Currency: "JPY", Weight: 0.4},
		{Symbol: models.CashSymbol, Currency: "JPY", IsCash: true, Weight: 0.1},
	}
	aligned := alignFor(t,
		historyFromReturns("A", combine(1, m, 1, normalReturns(rng, n, 0.01), 0)),
		historyFromReturns("B", combine(0.5, m, 1, normalReturns(rng, n, 0.015), 0)),
	)
	return positions, aligned, Correlate(aligned)
}

func TestEstimateVaR_MonotonicInConfidence(t *testing.T) {
	positions, aligned, corr := varFixture(t, 250)
	for _, method := range []models.VaRMethod{models.VaRMethodParametric, models.VaRMethodHistorical, models.VaRMethodConservative, models.VaRMethodAuto} {
		results := EstimateVaR(
			VaRInput{Positions: positions, Returns: aligned, Correlation: corr, PortfolioValue: 1_000_000},
			VaROptions{Confidences: []float64{0.99, 0.90, 0.95}, Horizons: []int{10, 1}, Method: method},
		)
		require.Len(t, results, 6, method)
		for i := 1; i < len(results); i++ {
			prev, cur := results[i-1], results[i]
			if prev.HorizonDays == cur.HorizonDays {
				assert.Less(t, prev.Confidence, cur.Confidence)
				assert.GreaterOrEqual(t, cur.LossPct, prev.LossPct, "%s h=%d c=%v", method, cur.HorizonDays, cur.Confidence)
			}
		}
		for _, r := range results {
			assert.False(t, r.Indeterminate)
			assert.InDelta(t, 1.0, r.CoveredWeight, 1e-12)
			assert.InDelta(t, r.LossPct*1_000_000, r.LossAmount, 1e-6)
			assert.Equal(t, 250, r.Observations)
		}
	}
}

func TestEstimateVaR_AutoPrefersParametric(t *testing.T) {
	positions, aligned, corr := varFixture(t, 100)
	results := EstimateVaR(
		VaRInput{Positions: positions, Returns: aligned, Correlation: corr},
		VaROptions{Confidences: []float64{0.95}, Horizons: []int{1}},
	)
	require.Len(t, results, 1)
	assert.Equal(t, models.VaRMethodParametric, results[0].Method)

	volA, _ := corr.VolatilityOf("A")
	volB, _ := corr.VolatilityOf("B")
	sub, err := corr.SubMatrix([]string{"A", "B"})
	require.NoError(t, err)
	want, _, err := ParametricVaR([]float64{0.5, 0.4}, []float64{volA, volB}, sub, 0.95, 1)
	require.NoError(t, err)
	assert.InDelta(t, want, results[0].LossPct, 1e-12)
}

func TestEstimateVaR_IndeterminateWithShortHistory(t *testing.T) {
	positions, _, _ := varFixture(t, 10)
	rng := newRand(t)
	aligned := AlignReturns([]models.PriceHistory{
		historyFromReturns("A", normalReturns(rng, 10, 0.01)),
		historyFromReturns("B", normalReturns(rng, 10, 0.01)),
	}, AlignOptions{MinObservations: 5, Intersect: true})

	results := EstimateVaR(
		VaRInput{Positions: positions, Returns: aligned, Correlation: Correlate(aligned), PortfolioValue: 100},
		VaROptions{Confidences: []float64{0.95}, Horizons: []int{1}, MinObservations: 20},
	)

	require.Len(t, results, 1)
	assert.True(t, results[0].Indeterminate)
	assert.Equal(t, models.VaRMethodNone, results[0].Method)
	assert.Equal(t, 0.0, results[0].LossAmount)
}

func TestEstimateVaR_AllDegenerate(t *testing.T) {
	positions := []models.Position{
		{Symbol: "F1", Currency: "JPY", Weight: 0.5},
		{Symbol: "F2", Currency: "JPY", Weight: 0.5},
	}
	aligned := alignFor(t, constantHistory("F1", 30), constantHistory("F2", 30))

	results := EstimateVaR(
		VaRInput{Positions: positions, Returns: aligned, Correlation: Correlate(aligned), PortfolioValue: 100},
		VaROptions{Confidences: []float64{0.95, 0.99}, Horizons: []int{1}},
	)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Degenerate)
		assert.False(t, r.Indeterminate)
		assert.Equal(t, 0.0, r.LossPct)
	}
}

func TestEstimateVaR_CashOnly(t *testing.T) {
	positions := []models.Position{{Symbol: models.CashSymbol, IsCash: true, Currency: "JPY", Weight: 1}}
	aligned := alignFor(t)

	results := EstimateVaR(
		VaRInput{Positions: positions, Returns: aligned, Correlation: Correlate(aligned), PortfolioValue: 100},
		VaROptions{Confidences: []float64{0.95}, Horizons: []int{1}},
	)

	require.Len(t, results, 1)
	assert.Equal(t, models.VaRMethodNone, results[0].Method)
	assert.False(t, results[0].Indeterminate)
	assert.Equal(t, 0.0, results[0].LossPct)
	assert.Equal(t, 1.0, results[0].CoveredWeight)
}

func TestEstimateVaR_DegenerateMemberFallsBackToHistorical(t *testing.T) {
	rng := newRand(t)
	positions := []models.Position{
		{Symbol: "A", Currency: "JPY", Weight: 0.6},
		{Symbol: "FLAT", Currency: "JPY", Weight: 0.4},
	}
	aligned := alignFor(t,
		historyFromReturns("A", normalReturns(rng, 60, 0.01)),
		constantHistory("FLAT", 60),
	)

	results := EstimateVaR(
		VaRInput{Positions: positions, Returns: aligned, Correlation: Correlate(aligned), PortfolioValue: 100},
		VaROptions{Confidences: []float64{0.95}, Horizons: []int{1}, Method: models.VaRMethodAuto},
	)

	require.Len(t, results, 1)
	// Degenerate members are dropped from the parametric block, so it still applies.
	assert.Equal(t, models.VaRMethodParametric, results[0].Method)
	assert.Greater(t, results[0].LossPct, 0.0)
	assert.InDelta(t, 1.0, results[0].CoveredWeight, 1e-12)
}
