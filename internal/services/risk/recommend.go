package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/enori/stock-skills/internal/common"
	"github.com/enori/stock-skills/internal/models"
)

// RecommendInput is everything the recommender reads. Signals are optional.
type RecommendInput struct {
	Positions     []models.Position
	BaseCurrency  string
	Concentration []models.ConcentrationResult
	VaR           []models.VaRResult
	Scenarios     []models.ScenarioOutcome
	Correlation   *models.CorrelationMatrix
	Exposures     []models.FactorExposure
	Excluded      []models.Exclusion
	Signals       []models.SentimentSignal
}

// Recommend evaluates fixed rules against the analysis outputs. The result is
// ordered by severity, then by how far the triggering metric exceeds its threshold,
// then by action and subject, so identical inputs give an identical list.
// A threshold of zero disables its rule.
func Recommend(in RecommendInput, th common.RiskThresholds) []models.Recommendation {
	var recs []models.Recommendation
	weights := make(map[string]float64, len(in.Positions))
	for _, p := range in.Positions {
		weights[p.Symbol] = p.Weight
	}

	recs = append(recs, concentrationRules(in, th)...)
	recs = append(recs, positionWeightRules(in, th)...)
	recs = append(recs, currencyRules(in, th)...)
	recs = append(recs, varRules(in, th)...)
	recs = append(recs, scenarioRules(in, th)...)
	recs = append(recs, correlationRules(in, th, weights)...)
	recs = append(recs, betaRules(in, th, weights)...)
	recs = append(recs, historyRules(in, weights)...)
	recs = append(recs, sentimentRules(in, th, weights)...)

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Magnitude != b.Magnitude {
			return a.Magnitude > b.Magnitude
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		return a.Subject < b.Subject
	})
	if recs == nil {
		recs = []models.Recommendation{}
	}
	return recs
}

// tier returns the severity for value against warning/critical thresholds and the
// threshold that fired, or ok=false when neither is reached.
func tier(value, warning, critical float64) (models.Severity, float64, bool) {
	if critical > 0 && value >= critical {
		return models.SeverityCritical, critical, true
	}
	if warning > 0 && value >= warning {
		return models.SeverityWarning, warning, true
	}
	return "", 0, false
}

func concentrationRules(in RecommendInput, th common.RiskThresholds) []models.Recommendation {
	var recs []models.Recommendation
	for _, c := range in.Concentration {
		var action string
		var warning, critical float64
		switch c.Dimension {
		case models.DimensionSymbol:
			action, warning, critical = models.ActionReduceConcentration, th.SymbolHHIWarning, th.SymbolHHICritical
		case models.DimensionSector:
			action, warning, critical = models.ActionRebalanceSector, th.SectorHHIWarning, th.SectorHHICritical
		default:
			continue
		}
		sev, limit, ok := tier(c.HHI, warning, critical)
		if !ok {
			continue
		}
		top, _ := c.Top()
		recs = append(recs, models.Recommendation{
			Action:   action,
			Severity: sev,
			Subject:  c.Dimension,
			Rationale: fmt.Sprintf("%s-level HHI of %.3f (effective %.1f holdings) is above the %.2f threshold; largest group %s holds %.1f%%",
				c.Dimension, c.HHI, c.EffectiveN, limit, top.Name, top.Weight*100),
			Metrics:   []models.TriggerMetric{{Name: c.Dimension + "_hhi", Value: c.HHI, Threshold: limit}},
			Magnitude: c.HHI / limit,
		})
	}
	return recs
}

func positionWeightRules(in RecommendInput, th common.RiskThresholds) []models.Recommendation {
	if th.PositionWeightLimit <= 0 {
		return nil
	}
	var recs []models.Recommendation
	for _, p := range in.Positions {
		if p.IsCash || p.Weight < th.PositionWeightLimit {
			continue
		}
		recs = append(recs, models.Recommendation{
			Action:    models.ActionTrimPosition,
			Severity:  models.SeverityWarning,
			Subject:   p.Symbol,
			Rationale: fmt.Sprintf("%s is %.1f%% of the portfolio, above the %.1f%% single-position limit", p.Symbol, p.Weight*100, th.PositionWeightLimit*100),
			Metrics:   []models.TriggerMetric{{Name: "position_weight", Value: p.Weight, Threshold: th.PositionWeightLimit}},
			Magnitude: p.Weight / th.PositionWeightLimit,
		})
	}
	return recs
}

func currencyRules(in RecommendInput, th common.RiskThresholds) []models.Recommendation {
	if th.ForeignCurrencyLimit <= 0 {
		return nil
	}
	var foreign float64
	byCurrency := make(map[string]float64)
	for _, p := range in.Positions {
		if p.IsForeign(in.BaseCurrency) {
			foreign += p.Weight
			byCurrency[p.Currency] += p.Weight
		}
	}
	if foreign < th.ForeignCurrencyLimit {
		return nil
	}
	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	parts := make([]string, len(currencies))
	for i, c := range currencies {
		parts[i] = fmt.Sprintf("%s %.1f%%", c, byCurrency[c]*100)
	}
	return []models.Recommendation{{
		Action:   models.ActionHedgeCurrency,
		Severity: models.SeverityWarning,
		Subject:  strings.Join(currencies, ","),
		Rationale: fmt.Sprintf("%.1f%% of the portfolio is held outside %s (%s), above the %.1f%% limit",
			foreign*100, in.BaseCurrency, strings.Join(parts, ", "), th.ForeignCurrencyLimit*100),
		Metrics:   []models.TriggerMetric{{Name: "foreign_currency_weight", Value: foreign, Threshold: th.ForeignCurrencyLimit}},
		Magnitude: foreign / th.ForeignCurrencyLimit,
	}}
}

func varRules(in RecommendInput, th common.RiskThresholds) []models.Recommendation {
	var worst *models.VaRResult
	for i := range in.VaR {
		v := &in.VaR[i]
		if v.Indeterminate {
			continue
		}
		if worst == nil || v.LossPct > worst.LossPct {
			worst = v
		}
	}
	if worst == nil {
		return nil
	}
	sev, limit, ok := tier(worst.LossPct, th.VaRWarning, th.VaRCritical)
	if !ok {
		return nil
	}
	return []models.Recommendation{{
		Action:   models.ActionReduceRisk,
		Severity: sev,
		Subject:  fmt.Sprintf("var_%.0f_%dd", worst.Confidence*100, worst.HorizonDays),
		Rationale: fmt.Sprintf("%s VaR at %.0f%% over %d day(s) is %.1f%% of portfolio value, above the %.1f%% threshold",
			worst.Method, worst.Confidence*100, worst.HorizonDays, worst.LossPct*100, limit*100),
		Metrics:   []models.TriggerMetric{{Name: "var_loss_pct", Value: worst.LossPct, Threshold: limit}},
		Magnitude: worst.LossPct / limit,
	}}
}

func scenarioRules(in RecommendInput, th common.RiskThresholds) []models.Recommendation {
	var recs []models.Recommendation
	for _, o := range in.Scenarios {
		loss := -o.PnLPct
		sev, limit, ok := tier(loss, th.ScenarioLossWarning, th.ScenarioLossCritical)
		if !ok {
			continue
		}
		recs = append(recs, models.Recommendation{
			Action:   models.ActionStressExposure,
			Severity: sev,
			Subject:  o.Scenario,
			Rationale: fmt.Sprintf("scenario %s loses %.1f%% of portfolio value, beyond the %.1f%% tolerance",
				o.Scenario, loss*100, limit*100),
			Metrics:   []models.TriggerMetric{{Name: "scenario_loss_pct", Value: loss, Threshold: limit}},
			Magnitude: loss / limit,
		})
	}
	return recs
}

func correlationRules(in RecommendInput, th common.RiskThresholds, weights map[string]float64) []models.Recommendation {
	if in.Correlation == nil || th.CorrelationLimit <= 0 {
		return nil
	}
	var recs []models.Recommendation
	for _, pair := range in.Correlation.Pairs() {
		if pair.Correlation < th.CorrelationLimit {
			continue
		}
		if weights[pair.A] < th.CorrelationMinWeight || weights[pair.B] < th.CorrelationMinWeight {
			continue
		}
		recs = append(recs, models.Recommendation{
			Action:   models.ActionDiversifyCorrelated,
			Severity: models.SeverityInfo,
			Subject:  pair.A + "/" + pair.B,
			Rationale: fmt.Sprintf("%s and %s move together (correlation %.2f) and hold %.1f%% combined",
				pair.A, pair.B, pair.Correlation, (weights[pair.A]+weights[pair.B])*100),
			Metrics:   []models.TriggerMetric{{Name: "correlation", Value: pair.Correlation, Threshold: th.CorrelationLimit}},
			Magnitude: pair.Correlation / th.CorrelationLimit,
		})
	}
	return recs
}

// PortfolioMarketBeta returns the weight-sum of estimated market betas and the
// weight covered by those estimates.
func PortfolioMarketBeta(exposures []models.FactorExposure, weights map[string]float64) (float64, float64) {
	var beta, covered float64
	for i := range exposures {
		b, ok := exposures[i].Beta(models.FactorMarket)
		if !ok {
			continue
		}
		w := weights[exposures[i].Symbol]
		beta += w * b
		covered += w
	}
	return beta, covered
}

func betaRules(in RecommendInput, th common.RiskThresholds, weights map[string]float64) []models.Recommendation {
	if th.MarketBetaLimit <= 0 {
		return nil
	}
	beta, covered := PortfolioMarketBeta(in.Exposures, weights)
	if covered == 0 || beta < th.MarketBetaLimit {
		return nil
	}
	return []models.Recommendation{{
		Action:   models.ActionReduceBeta,
		Severity: models.SeverityInfo,
		Subject:  models.FactorMarket,
		Rationale: fmt.Sprintf("weighted market beta is %.2f over %.1f%% of the portfolio, above %.2f",
			beta, covered*100, th.MarketBetaLimit),
		Metrics:   []models.TriggerMetric{{Name: "market_beta", Value: beta, Threshold: th.MarketBetaLimit}},
		Magnitude: beta / th.MarketBetaLimit,
	}}
}

func historyRules(in RecommendInput, weights map[string]float64) []models.Recommendation {
	var symbols []string
	var weight float64
	for _, e := range in.Excluded {
		if e.Reason != models.IssueInsufficientData {
			continue
		}
		symbols = append(symbols, e.Symbol)
		weight += weights[e.Symbol]
	}
	if len(symbols) == 0 {
		return nil
	}
	return []models.Recommendation{{
		Action:   models.ActionExtendHistory,
		Severity: models.SeverityInfo,
		Subject:  strings.Join(symbols, ","),
		Rationale: fmt.Sprintf("%d position(s) holding %.1f%% have too little price history for correlation and VaR: %s",
			len(symbols), weight*100, strings.Join(symbols, ", ")),
		Metrics:   []models.TriggerMetric{{Name: "excluded_weight", Value: weight}},
		Magnitude: weight,
	}}
}

func sentimentRules(in RecommendInput, th common.RiskThresholds, weights map[string]float64) []models.Recommendation {
	if th.SentimentLimit >= 0 {
		return nil
	}
	var recs []models.Recommendation
	for _, s := range in.Signals {
		w, held := weights[s.Symbol]
		if !held || w < th.SentimentMinWeight || s.Score > th.SentimentLimit {
			continue
		}
		rationale := fmt.Sprintf("sentiment for %s is %.2f while it holds %.1f%% of the portfolio", s.Symbol, s.Score, w*100)
		if s.Source != "" {
			rationale += " (source: " + s.Source + ")"
		}
		recs = append(recs, models.Recommendation{
			Action:    models.ActionReviewPosition,
			Severity:  models.SeverityInfo,
			Subject:   s.Symbol,
			Rationale: rationale,
			Metrics:   []models.TriggerMetric{{Name: "sentiment_score", Value: s.Score, Threshold: th.SentimentLimit}},
			Magnitude: s.Score / th.SentimentLimit,
		})
	}
	return recs
}
