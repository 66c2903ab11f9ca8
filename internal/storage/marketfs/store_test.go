package marketfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enori/stock-skills/internal/common"
	"github.com/enori/stock-skills/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewStore_CreatesLayout(t *testing.T) {
	s := newTestStore(t)
	for _, sub := range []string{"prices", "factors", "portfolios", "reports"} {
		info, err := os.Stat(filepath.Join(s.DataPath(), sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir(), sub)
	}
}

func TestPriceHistory_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	in := &models.PriceHistory{
		Symbol: "7203.T",
		Points: []models.PricePoint{{Date: day, Close: 2500}, {Date: day.AddDate(0, 0, 1), Close: 2550}},
	}
	require.NoError(t, s.SavePriceHistory(ctx, in))

	out, err := s.GetPriceHistory(ctx, "7203.T")
	require.NoError(t, err)
	assert.Equal(t, "7203.T", out.Symbol)
	require.Len(t, out.Points, 2)
	assert.True(t, out.Points[1].Date.Equal(day.AddDate(0, 0, 1)))
	assert.Equal(t, 2550.0, out.Points[1].Close)
}

func TestGetPriceHistory_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPriceHistory(context.Background(), "MISSING")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSavePriceHistory_RequiresSymbol(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SavePriceHistory(context.Background(), &models.PriceHistory{}))
}

func TestFactorHistory_NamesSurviveEncoding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, f := range []string{"sector:Real Estate", "currency:USD", "market"} {
		require.NoError(t, s.SaveFactorHistory(ctx, &models.FactorHistory{Factor: f}))
	}

	got, err := s.GetFactorHistory(ctx, "sector:Real Estate")
	require.NoError(t, err)
	assert.Equal(t, "sector:Real Estate", got.Factor)

	names, err := s.ListFactors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"currency:USD", "market", "sector:Real Estate"}, names)
}

func TestSaveFactorHistory_RejectsInvalidName(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveFactorHistory(context.Background(), &models.FactorHistory{Factor: "momentum"})
	assert.Error(t, err)
}

func TestSnapshot_RoundTripAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &models.PortfolioSnapshot{
		Name:         "core",
		BaseCurrency: "JPY",
		Positions: []models.Position{
			{Symbol: "7203.T", Shares: 100, CurrentPrice: 2500, Currency: "JPY", Sector: "Consumer Cyclical"},
			{Symbol: "AAPL", Shares: 10, CurrentPrice: 200, Currency: "USD", FXRate: 150},
		},
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	require.NoError(t, s.SaveSnapshot(ctx, &models.PortfolioSnapshot{Name: "alt"}))

	got, err := s.GetSnapshot(ctx, "core")
	require.NoError(t, err)
	assert.Equal(t, snap.Positions, got.Positions)

	names, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alt", "core"}, names)

	_, err = s.GetSnapshot(ctx, "nope")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReport_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.Error(t, s.SaveReport(ctx, &models.RiskReport{}))

	r := &models.RiskReport{ID: "abc-123", Portfolio: "core", BaseCurrency: "JPY", PortfolioValue: 1e6}
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetReport(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "core", got.Portfolio)
	assert.Equal(t, 1e6, got.PortfolioValue)
}

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"7203.T", "7203.T"},
		{"sector:Real Estate", "sector%3AReal+Estate"},
		{"sector:Real_Estate", "sector%3AReal_Estate"},
		{"../etc/passwd", "%2E.%2Fetc%2Fpasswd"},
		{".tmp-x", "%2Etmp-x"},
		{`a\b`, "a%5Cb"},
	}
	for _, tt := range tests {
		got := encodeKey(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		back, ok := decodeKey(got)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.in, back)
	}
}

func TestFactorHistory_SimilarNamesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	spaced := &models.FactorHistory{Factor: "sector:Real Estate", Points: []models.PricePoint{{Close: 1}}}
	underscored := &models.FactorHistory{Factor: "sector:Real_Estate", Points: []models.PricePoint{{Close: 2}, {Close: 3}}}
	require.NoError(t, s.SaveFactorHistory(ctx, spaced))
	require.NoError(t, s.SaveFactorHistory(ctx, underscored))

	got, err := s.GetFactorHistory(ctx, "sector:Real Estate")
	require.NoError(t, err)
	assert.Len(t, got.Points, 1)

	names, err := s.ListFactors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sector:Real Estate", "sector:Real_Estate"}, names)
}
