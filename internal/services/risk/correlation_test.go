package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enori/stock-skills/internal/models"
)

func TestCorrelate_SymmetricUnitDiagonalBounded(t *testing.T) {
	rng := newRand(t)
	m := normalReturns(rng, 120, 0.01)
	histories := []models.PriceHistory{
		historyFromReturns("A", m),
		historyFromReturns("B", combine(0.8, m, 0.6, normalReturns(rng, 120, 0.01), 0)),
		historyFromReturns("C", normalReturns(rng, 120, 0.02)),
		historyFromReturns("D", combine(-1, m, 0, nil, 0)),
	}

	res := Correlate(alignFor(t, histories...))
	mtx := res.Matrix

	require.Equal(t, []string{"A", "B", "C", "D"}, mtx.Symbols)
	for i := range mtx.Symbols {
		assert.Equal(t, 1.0, mtx.Values[i][i])
		for j := range mtx.Symbols {
			assert.Equal(t, mtx.Values[i][j], mtx.Values[j][i])
			assert.GreaterOrEqual(t, mtx.Values[i][j], -1.0)
			assert.LessOrEqual(t, mtx.Values[i][j], 1.0)
		}
	}
	ad, _ := mtx.Get("A", "D")
	assert.InDelta(t, -1.0, ad, 1e-9)
	ab, _ := mtx.Get("A", "B")
	assert.Greater(t, ab, 0.5)
	assert.Empty(t, res.Issues)
	assert.Len(t, res.Volatility, 4)
}

func TestCorrelate_DegenerateSeriesUndefined(t *testing.T) {
	rng := newRand(t)
	res := Correlate(alignFor(t,
		historyFromReturns("A", normalReturns(rng, 30, 0.01)),
		constantHistory("FLAT", 30),
	))

	assert.False(t, res.Matrix.Defined("FLAT"))
	assert.True(t, res.Matrix.Defined("A"))
	_, ok := res.Matrix.Get("A", "FLAT")
	assert.False(t, ok)
	assert.Equal(t, []string{"FLAT"}, res.Degenerate)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, models.IssueDegenerateVariance, res.Issues[0].Kind)

	_, ok = res.VolatilityOf("FLAT")
	assert.False(t, ok)
	vol, ok := res.VolatilityOf("A")
	assert.True(t, ok)
	assert.Greater(t, vol, 0.0)

	_, err := res.SubMatrix([]string{"A", "FLAT"})
	assert.Error(t, err)
	sub, err := res.SubMatrix([]string{"A"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, sub.At(0, 0))
}

func TestCorrelate_Empty(t *testing.T) {
	res := Correlate(&AlignedReturns{})
	assert.Empty(t, res.Matrix.Symbols)
	assert.Nil(t, res.Sym)

	_, err := res.SubMatrix(nil)
	assert.Error(t, err)
	_, err = res.SubMatrix([]string{"X"})
	assert.Error(t, err)
}

func TestCorrelationMatrix_JSONNulls(t *testing.T) {
	rng := newRand(t)
	res := Correlate(alignFor(t,
		historyFromReturns("A", normalReturns(rng, 30, 0.01)),
		constantHistory("FLAT", 30),
	))

	data, err := res.Matrix.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "null")

	var back models.CorrelationMatrix
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, math.IsNaN(back.Values[1][1]))
	assert.Equal(t, 1.0, back.Values[0][0])
}
