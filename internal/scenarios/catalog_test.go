package scenarios

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enori/stock-skills/internal/models"
)

func TestDefault_LoadsEightScenarios(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())
	assert.Equal(t, []string{
		"triple_decline", "tech_crash", "yen_appreciation", "rate_shock",
		"global_recession", "liquidity_crisis", "dollar_surge", "china_slowdown",
	}, c.Names())

	tech, ok := c.Get("tech_crash")
	require.True(t, ok)
	assert.InDelta(t, -0.30, tech.Shocks["sector:Technology"], 1e-12)
	assert.InDelta(t, -0.15, tech.Shocks["sector:Communication Services"], 1e-12)
}

func TestCatalog_IsImmutable(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	s, _ := c.Get("yen_appreciation")
	s.Shocks["currency:USD"] = -0.99

	all := c.Scenarios()
	all[0].Shocks["market"] = 0.5

	again, _ := c.Get("yen_appreciation")
	assert.InDelta(t, -0.10, again.Shocks["currency:USD"], 1e-12)
	first := c.Scenarios()[0]
	assert.InDelta(t, -0.15, first.Shocks["market"], 1e-12)
}

func TestNew_RejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name      string
		scenarios []models.Scenario
	}{
		{"empty name", []models.Scenario{{Name: " ", Shocks: map[string]float64{"market": -0.1}}}},
		{"shock above range", []models.Scenario{{Name: "a", Shocks: map[string]float64{"market": -1.5}}}},
		{"unknown factor", []models.Scenario{{Name: "a", Shocks: map[string]float64{"weather": -0.1}}}},
		{"lowercase currency", []models.Scenario{{Name: "a", Shocks: map[string]float64{"currency:usd": -0.1}}}},
		{"empty sector", []models.Scenario{{Name: "a", Shocks: map[string]float64{"sector:": -0.1}}}},
		{"duplicate", []models.Scenario{
			{Name: "a", Shocks: map[string]float64{"market": -0.1}},
			{Name: "a", Shocks: map[string]float64{"market": -0.2}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.scenarios)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestNew_AcceptsBoundaryShock(t *testing.T) {
	c, err := New([]models.Scenario{{Name: "wipeout", Shocks: map[string]float64{"market": -1.0}}})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	doc := `
scenarios:
  - name: jpy_crash
    description: Yen falls sharply
    shocks:
      "currency:USD": 0.20
  - name: flat
    shocks: {}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"jpy_crash", "flat"}, c.Names())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesBuiltin(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())
}
