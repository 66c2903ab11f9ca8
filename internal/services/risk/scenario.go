package risk

import (
	"fmt"
	"sort"

	"github.com/enori/stock-skills/internal/models"
)

// SimulateScenario applies one scenario to every position.
//
// A position's impact is the sum of sensitivity x shock over the shocked factors
// it is sensitive to; positions with no such sensitivity have zero impact but are
// still listed. Portfolio P&L is the weight-sum of position impacts.
func SimulateScenario(positions []models.Position, table *SensitivityTable, scenario models.Scenario, portfolioValue float64) models.ScenarioOutcome {
	factors := scenario.Factors()
	out := models.ScenarioOutcome{
		Scenario:      scenario.Name,
		Description:   scenario.Description,
		Contributions: make([]models.PositionContribution, 0, len(positions)),
	}

	for _, p := range positions {
		c := models.PositionContribution{Symbol: p.Symbol, Weight: p.Weight}
		for _, f := range factors {
			shock := scenario.Shocks[f]
			impact, s, ok := table.Impact(p.Symbol, f, shock)
			if !ok {
				continue
			}
			c.ImpactPct += impact
			c.Factors = append(c.Factors, models.FactorImpact{
				Factor:      f,
				Shock:       shock,
				Sensitivity: s.Value,
				Impact:      impact,
				Source:      s.Source,
			})
		}
		c.ContributionPct = p.Weight * c.ImpactPct
		c.Amount = c.ImpactPct * p.MarketValue
		out.PnLPct += c.ContributionPct
		out.Contributions = append(out.Contributions, c)
	}
	out.PnLAmount = out.PnLPct * portfolioValue

	for _, f := range factors {
		if !table.Exposed(f) {
			out.UnresolvedFactors = append(out.UnresolvedFactors, f)
		}
	}
	return out
}

// SimulateScenarios runs every scenario independently and ranks the outcomes from
// the largest loss to the largest gain; equal outcomes keep catalog order.
// Shocked factors with no exposure anywhere in the portfolio are reported as issues.
func SimulateScenarios(positions []models.Position, table *SensitivityTable, scenarios []models.Scenario, portfolioValue float64) ([]models.ScenarioOutcome, []models.Issue) {
	outcomes := make([]models.ScenarioOutcome, len(scenarios))
	var issues []models.Issue
	for i, s := range scenarios {
		outcomes[i] = SimulateScenario(positions, table, s, portfolioValue)
		for _, f := range outcomes[i].UnresolvedFactors {
			issues = append(issues, models.Issue{
				Kind:    models.IssueUnresolvedScenarioFactor,
				Subject: s.Name,
				Detail:  fmt.Sprintf("no position is exposed to %s; contribution is zero", f),
			})
		}
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].PnLPct < outcomes[j].PnLPct
	})
	for i := range outcomes {
		outcomes[i].Rank = i + 1
	}
	return outcomes, issues
}
