package models

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// IssueKind classifies a recoverable condition detected during analysis
type IssueKind string

const (
	IssueInsufficientData         IssueKind = "insufficient_data"
	IssueIndeterminateFactor      IssueKind = "indeterminate_factor"
	IssueDegenerateVariance       IssueKind = "degenerate_variance"
	IssueUnresolvedScenarioFactor IssueKind = "unresolved_scenario_factor"
)

// Issue is a structured annotation attached to a risk report.
// Issues never abort a run; they label what the report could not cover.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail"`
}

// Exclusion records a symbol left out of correlation/VaR/factor computation
type Exclusion struct {
	Symbol       string    `json:"symbol"`
	Reason       IssueKind `json:"reason"`
	Observations int       `json:"observations"`
	Required     int       `json:"required"`
	Detail       string    `json:"detail,omitempty"`
}

// ReturnPoint is a single simple return observation
type ReturnPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// ReturnSeries is the ordered return series of one symbol.
// Dates are strictly increasing with no duplicates.
type ReturnSeries struct {
	Symbol string        `json:"symbol"`
	Points []ReturnPoint `json:"points"`
}

// Len returns the number of observations.
func (r ReturnSeries) Len() int {
	return len(r.Points)
}

// Values returns the returns as a plain slice.
func (r ReturnSeries) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Return
	}
	return out
}

// Dates returns the observation dates.
func (r ReturnSeries) Dates() []time.Time {
	out := make([]time.Time, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Date
	}
	return out
}

// CorrelationMatrix is a symmetric symbol-by-symbol correlation matrix.
// Undefined entries (zero-variance symbols) are NaN and serialise as null.
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// Index returns the row of symbol, or -1.
func (m *CorrelationMatrix) Index(symbol string) int {
	for i, s := range m.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Get returns the correlation between a and b and whether it is defined.
func (m *CorrelationMatrix) Get(a, b string) (float64, bool) {
	i, j := m.Index(a), m.Index(b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	v := m.Values[i][j]
	return v, !math.IsNaN(v)
}

// Defined reports whether symbol has a defined (non-NaN) diagonal.
func (m *CorrelationMatrix) Defined(symbol string) bool {
	_, ok := m.Get(symbol, symbol)
	return ok
}

// MarshalJSON writes NaN entries as null.
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if math.IsNaN(row[j]) {
				continue
			}
			v := row[j]
			values[i][j] = &v
		}
	}
	return json.Marshal(struct {
		Symbols []string     `json:"symbols"`
		Values  [][]*float64 `json:"values"`
	}{m.Symbols, values})
}

// UnmarshalJSON reads null entries back as NaN.
func (m *CorrelationMatrix) UnmarshalJSON(data []byte) error {
	var raw struct {
		Symbols []string     `json:"symbols"`
		Values  [][]*float64 `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Symbols = raw.Symbols
	m.Values = make([][]float64, len(raw.Values))
	for i, row := range raw.Values {
		m.Values[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				m.Values[i][j] = math.NaN()
				continue
			}
			m.Values[i][j] = *v
		}
	}
	return nil
}

// CorrelatedPair is a pair of symbols and their correlation
type CorrelatedPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// Pairs returns every defined off-diagonal pair once (i < j), in matrix order.
func (m *CorrelationMatrix) Pairs() []CorrelatedPair {
	var pairs []CorrelatedPair
	for i := range m.Symbols {
		for j := i + 1; j < len(m.Symbols); j++ {
			v := m.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			pairs = append(pairs, CorrelatedPair{A: m.Symbols[i], B: m.Symbols[j], Correlation: v})
		}
	}
	return pairs
}

// Regression methods recorded on a FactorExposure
const (
	RegressionOLS           = "ols"
	RegressionUnivariateOLS = "univariate_ols"
	RegressionNone          = "none"
)

// FactorCoefficient is the sensitivity of a position to one factor
type FactorCoefficient struct {
	Factor string  `json:"factor"`
	Beta   float64 `json:"beta"`
}

// FactorGap records a factor omitted from a position's decomposition
type FactorGap struct {
	Factor string `json:"factor"`
	Reason string `json:"reason"`
}

// FactorExposure is the factor decomposition of one position's returns
type FactorExposure struct {
	Symbol           string              `json:"symbol"`
	Coefficients     []FactorCoefficient `json:"coefficients"`
	Alpha            float64             `json:"alpha"`
	ResidualVariance float64             `json:"residual_variance"`
	ResidualShare    float64             `json:"residual_share"` // idiosyncratic share of return variance, 0-1
	RSquared         float64             `json:"r_squared"`
	Observations     int                 `json:"observations"`
	Method           string              `json:"method"`
	Partial          bool                `json:"partial"`
	Missing          []FactorGap         `json:"missing,omitempty"`
}

// Beta returns the coefficient for factor and whether it was estimated.
func (e *FactorExposure) Beta(factor string) (float64, bool) {
	for _, c := range e.Coefficients {
		if c.Factor == factor {
			return c.Beta, true
		}
	}
	return 0, false
}

// SensitivitySource identifies where a sensitivity value came from
type SensitivitySource string

const (
	SensitivityRegression SensitivitySource = "regression"
	SensitivityOverride   SensitivitySource = "override"
	SensitivityStructural SensitivitySource = "structural"
)

// Sensitivity is a resolved (position, factor) sensitivity coefficient
type Sensitivity struct {
	Symbol string            `json:"symbol"`
	Factor string            `json:"factor"`
	Value  float64           `json:"value"`
	Source SensitivitySource `json:"source"`
}

// Scenario is a named multi-factor shock definition. Immutable once loaded.
type Scenario struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Shocks      map[string]float64 `json:"shocks" yaml:"shocks"`
}

// Factors returns the shocked factor names in sorted order.
func (s Scenario) Factors() []string {
	factors := make([]string, 0, len(s.Shocks))
	for f := range s.Shocks {
		factors = append(factors, f)
	}
	sort.Strings(factors)
	return factors
}

// FactorImpact is the impact of one shocked factor on one position
type FactorImpact struct {
	Factor      string            `json:"factor"`
	Shock       float64           `json:"shock"`
	Sensitivity float64           `json:"sensitivity"`
	Impact      float64           `json:"impact"`
	Source      SensitivitySource `json:"source"`
}

// PositionContribution is one position's share of a scenario outcome
type PositionContribution struct {
	Symbol          string         `json:"symbol"`
	Weight          float64        `json:"weight"`
	ImpactPct       float64        `json:"impact_pct"`       // position return under the scenario
	ContributionPct float64        `json:"contribution_pct"` // weight x impact
	Amount          float64        `json:"amount"`           // base currency
	Factors         []FactorImpact `json:"factors,omitempty"`
}

// ScenarioOutcome is the result of applying one scenario to the portfolio
type ScenarioOutcome struct {
	Scenario          string                 `json:"scenario"`
	Description       string                 `json:"description"`
	Rank              int                    `json:"rank"`
	PnLPct            float64                `json:"pnl_pct"`
	PnLAmount         float64                `json:"pnl_amount"`
	Contributions     []PositionContribution `json:"contributions"`
	UnresolvedFactors []string               `json:"unresolved_factors,omitempty"`
}

// VaRMethod selects how value-at-risk is estimated
type VaRMethod string

const (
	VaRMethodAuto         VaRMethod = "auto"
	VaRMethodParametric   VaRMethod = "parametric"
	VaRMethodHistorical   VaRMethod = "historical"
	VaRMethodConservative VaRMethod = "conservative"
	VaRMethodNone         VaRMethod = "none"
)

// VaRResult is one value-at-risk estimate
type VaRResult struct {
	Confidence              float64   `json:"confidence"`
	HorizonDays             int       `json:"horizon_days"`
	Method                  VaRMethod `json:"method"`
	LossPct                 float64   `json:"loss_pct"`
	LossAmount              float64   `json:"loss_amount"`
	ExpectedShortfallPct    float64   `json:"expected_shortfall_pct"`
	ExpectedShortfallAmount float64   `json:"expected_shortfall_amount"`
	Observations            int       `json:"observations"`
	CoveredWeight           float64   `json:"covered_weight"`
	Indeterminate           bool      `json:"indeterminate"`
	Degenerate              bool      `json:"degenerate"`
	Note                    string    `json:"note,omitempty"`
}

// Concentration dimensions
const (
	DimensionSymbol   = "symbol"
	DimensionSector   = "sector"
	DimensionCurrency = "currency"
)

// GroupWeight is the aggregate weight of one group within a dimension
type GroupWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ConcentrationResult is the Herfindahl-Hirschman index for one grouping dimension
type ConcentrationResult struct {
	Dimension  string        `json:"dimension"`
	HHI        float64       `json:"hhi"`
	EffectiveN float64       `json:"effective_n"`
	Groups     []GroupWeight `json:"groups"`
}

// Top returns the heaviest group, if any.
func (c ConcentrationResult) Top() (GroupWeight, bool) {
	if len(c.Groups) == 0 {
		return GroupWeight{}, false
	}
	return c.Groups[0], true
}

// PositionRisk holds historical volatility metrics for one position
type PositionRisk struct {
	Symbol               string  `json:"symbol"`
	MeanReturn           float64 `json:"mean_return"`
	DailyVolatility      float64 `json:"daily_volatility"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	DownsideVolatility   float64 `json:"downside_volatility,omitempty"` // annualized; 0 when fewer than 2 negative returns
	Observations         int     `json:"observations"`
}

// Severity is the tier of a recommendation
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities: critical > warning > info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

// Recommendation actions
const (
	ActionReduceConcentration = "reduce-concentration"
	ActionTrimPosition        = "trim-position"
	ActionRebalanceSector     = "rebalance-sector"
	ActionHedgeCurrency       = "hedge-currency"
	ActionReduceRisk          = "reduce-risk"
	ActionStressExposure      = "stress-exposure"
	ActionDiversifyCorrelated = "diversify-correlated"
	ActionReduceBeta          = "reduce-beta"
	ActionExtendHistory       = "extend-history"
	ActionReviewPosition      = "review-position"
)

// TriggerMetric is a metric value that fired a recommendation rule
type TriggerMetric struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Recommendation is one suggested action with its rationale
type Recommendation struct {
	Action    string          `json:"action"`
	Severity  Severity        `json:"severity"`
	Subject   string          `json:"subject"`
	Rationale string          `json:"rationale"`
	Metrics   []TriggerMetric `json:"metrics"`
	Magnitude float64         `json:"magnitude"` // triggering metric relative to its threshold
}

// AnalysisWindow describes the aligned history used for the run
type AnalysisWindow struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Observations int       `json:"observations"`
}

// RiskReport is the complete output of one analysis run
type RiskReport struct {
	ID              string                `json:"id"`
	Portfolio       string                `json:"portfolio"`
	GeneratedAt     time.Time             `json:"generated_at"`
	BaseCurrency    string                `json:"base_currency"`
	PortfolioValue  float64               `json:"portfolio_value"`
	Positions       []Position            `json:"positions"`
	Window          AnalysisWindow        `json:"window"`
	Correlation     CorrelationMatrix     `json:"correlation"`
	Exposures       []FactorExposure      `json:"exposures"`
	Sensitivities   []Sensitivity         `json:"sensitivities"`
	PositionRisks   []PositionRisk        `json:"position_risks"`
	Scenarios       []ScenarioOutcome     `json:"scenarios"`
	VaR             []VaRResult           `json:"var"`
	Concentration   []ConcentrationResult `json:"concentration"`
	Recommendations []Recommendation      `json:"recommendations"`
	Excluded        []Exclusion           `json:"excluded"`
	Issues          []Issue               `json:"issues"`
}

// InsufficientData returns the symbols excluded for insufficient history.
func (r *RiskReport) InsufficientData() []string {
	var out []string
	for _, e := range r.Excluded {
		if e.Reason == IssueInsufficientData {
			out = append(out, e.Symbol)
		}
	}
	return out
}

// ConcentrationFor returns the concentration result for a dimension.
func (r *RiskReport) ConcentrationFor(dimension string) (ConcentrationResult, bool) {
	for _, c := range r.Concentration {
		if c.Dimension == dimension {
			return c, true
		}
	}
	return ConcentrationResult{}, false
}
