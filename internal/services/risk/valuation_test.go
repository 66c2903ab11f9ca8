package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enori/stock-skills/internal/models"
)

func TestValuePortfolio_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		positions []models.Position
	}{
		{"no positions", nil},
		{"empty symbol", []models.Position{{Symbol: " ", Shares: 1, CurrentPrice: 1, Currency: "JPY"}}},
		{"negative shares", []models.Position{{Symbol: "A", Shares: -1, CurrentPrice: 1, Currency: "JPY"}}},
		{"NaN price", []models.Position{{Symbol: "A", Shares: 1, CurrentPrice: math.NaN(), Currency: "JPY"}}},
		{"duplicate symbol", []models.Position{
			{Symbol: "A", Shares: 1, CurrentPrice: 1, Currency: "JPY"},
			{Symbol: "A", Shares: 2, CurrentPrice: 1, Currency: "JPY"},
		}},
		{"weights do not sum to one", []models.Position{
			{Symbol: "A", Weight: 0.5, Currency: "JPY"},
			{Symbol: "B", Weight: 0.3, Currency: "JPY"},
		}},
		{"weight above one", []models.Position{{Symbol: "A", Weight: 1.5, Currency: "JPY"}}},
		{"foreign without fx", []models.Position{{Symbol: "AAPL", Shares: 10, CurrentPrice: 200, Currency: "USD"}}},
		{"zero market value", []models.Position{{Symbol: "A", Currency: "JPY"}}},
		{"unknown override factor", []models.Position{{
			Symbol: "A", Shares: 1, CurrentPrice: 1, Currency: "JPY",
			SensitivityOverrides: map[string]float64{"momentum": 1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValuePortfolio(models.PortfolioSnapshot{Name: "p", Positions: tt.positions}, "JPY")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPortfolio)
		})
	}
}

func TestValuePortfolio_DerivedWeights(t *testing.T) {
	v, err := ValuePortfolio(models.PortfolioSnapshot{Positions: []models.Position{
		{Symbol: "7203.T", Shares: 100, CurrentPrice: 3000, Currency: "jpy"},
		{Symbol: "AAPL", Shares: 10, CurrentPrice: 200, Currency: "USD", FXRate: 150},
		{IsCash: true, Shares: 1, CurrentPrice: 300_000},
	}}, "JPY")
	require.NoError(t, err)

	assert.InDelta(t, 900_000, v.Total, 1e-6)
	assert.Equal(t, "JPY", v.BaseCurrency)
	assert.InDelta(t, 1.0/3, v.Weight("7203.T"), 1e-12)
	assert.InDelta(t, 1.0/3, v.Weight("AAPL"), 1e-12)
	assert.InDelta(t, 1.0/3, v.Weight(models.CashSymbol), 1e-12)
	assert.Equal(t, "JPY", v.Positions[0].Currency)
	assert.Equal(t, "JPY", v.Positions[2].Currency, "cash defaults to base currency")
	assert.InDelta(t, 300_000, v.Positions[1].MarketValue, 1e-6)
}

func TestValuePortfolio_SuppliedWeights(t *testing.T) {
	v, err := ValuePortfolio(models.PortfolioSnapshot{Positions: []models.Position{
		{Symbol: "A", Shares: 100, CurrentPrice: 10, Currency: "JPY", Weight: 0.5004},
		{Symbol: "AAPL", Shares: 1, CurrentPrice: 1, Currency: "USD", Weight: 0.5}, // no FX rate
	}}, "JPY")
	require.NoError(t, err)

	var sum float64
	for _, p := range v.Positions {
		sum += p.Weight
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.InDelta(t, 0.5004/1.0004, v.Weight("A"), 1e-12)
	assert.InDelta(t, 1000, v.Positions[0].MarketValue, 1e-9)
	// The unvalued position's market value is implied from the valued one.
	assert.InDelta(t, 1000*0.5/0.5004, v.Positions[1].MarketValue, 1e-6)
	assert.InDelta(t, 1000*1.0004/0.5004, v.Total, 1e-6)
}

func TestValuePortfolio_SuppliedWeightsDriveMarketValues(t *testing.T) {
	v, err := ValuePortfolio(models.PortfolioSnapshot{Positions: []models.Position{
		{Symbol: "A", Shares: 1, CurrentPrice: 100, Currency: "JPY", Weight: 0.5},
		{Symbol: "B", Shares: 1, CurrentPrice: 300, Currency: "JPY", Weight: 0.5},
	}}, "JPY")
	require.NoError(t, err)

	assert.InDelta(t, 400, v.Total, 1e-9)
	for _, p := range v.Positions {
		assert.InDelta(t, p.Weight*v.Total, p.MarketValue, 1e-9, p.Symbol)
	}
}
