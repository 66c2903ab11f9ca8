package risk

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/enori/stock-skills/internal/common"
	"github.com/enori/stock-skills/internal/interfaces"
	"github.com/enori/stock-skills/internal/models"
	"github.com/enori/stock-skills/internal/scenarios"
)

// Service implements RiskService
type Service struct {
	config       common.RiskConfig
	baseCurrency string
	catalog      *scenarios.Catalog
	metrics      *Metrics
	logger       *common.Logger

	now   func() time.Time
	newID func() string
}

var _ interfaces.RiskService = (*Service)(nil)

// NewService creates a new risk service. A nil catalog uses the built-in scenarios
// and nil metrics disables instrumentation.
func NewService(cfg *common.Config, catalog *scenarios.Catalog, metrics *Metrics, logger *common.Logger) *Service {
	if catalog == nil {
		catalog = scenarios.MustDefault()
	}
	return &Service{
		config:       cfg.Risk,
		baseCurrency: cfg.BaseCurrency,
		catalog:      catalog,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// Analyze runs the full pipeline for one portfolio snapshot.
func (s *Service) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.RiskReport, error) {
	start := time.Now()
	report, err := s.analyze(ctx, req)
	if err != nil {
		s.metrics.observeFailure(start)
		s.logger.Warn().Err(err).Str("portfolio", req.Snapshot.Name).Msg("Risk analysis failed")
		return nil, err
	}
	s.metrics.observeReport(start, report)
	s.logger.Info().
		Str("portfolio", report.Portfolio).
		Str("id", report.ID).
		Int("positions", len(report.Positions)).
		Int("excluded", len(report.Excluded)).
		Int("recommendations", len(report.Recommendations)).
		Dur("elapsed", time.Since(start)).
		Msg("Risk analysis complete")
	return report, nil
}

func (s *Service) analyze(ctx context.Context, req models.AnalysisRequest) (*models.RiskReport, error) {
	base := strings.ToUpper(strings.TrimSpace(req.Snapshot.BaseCurrency))
	if base == "" {
		base = s.baseCurrency
	}

	valuation, err := ValuePortfolio(req.Snapshot, base)
	if err != nil {
		return nil, err
	}
	positions := valuation.Positions
	s.logger.Debug().Str("portfolio", req.Snapshot.Name).Int("positions", len(positions)).
		Float64("value", valuation.Total).Msg("Portfolio valued")

	asOf := req.Snapshot.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	var since time.Time
	if s.config.LookbackDays > 0 {
		since = asOf.AddDate(0, 0, -s.config.LookbackDays)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Every non-cash position is aligned, with an empty history when none was supplied,
	// so missing data surfaces as an exclusion rather than a silent omission.
	supplied := make(map[string]models.PriceHistory, len(req.Histories))
	for _, h := range req.Histories {
		if _, dup := supplied[h.Symbol]; !dup {
			supplied[h.Symbol] = h
		}
	}
	histories := make([]models.PriceHistory, 0, len(positions))
	for _, p := range positions {
		if p.IsCash {
			continue
		}
		h, ok := supplied[p.Symbol]
		if !ok {
			h = models.PriceHistory{Symbol: p.Symbol}
		}
		histories = append(histories, h)
	}

	minObs := s.config.MinObservations
	aligned := AlignReturns(histories, AlignOptions{MinObservations: minObs, Intersect: true, Since: since})
	for _, e := range aligned.Excluded {
		s.logger.Warn().Str("symbol", e.Symbol).Int("observations", e.Observations).
			Int("required", e.Required).Msg("Position excluded from statistical analysis")
	}

	corr := Correlate(aligned)

	factorReturns, factorIssues := s.alignFactors(req.Factors, minObs, since)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	factorResult := DecomposeFactors(positions, aligned, factorReturns, FactorOptions{MinObservations: minObs, BaseCurrency: base})
	table := ResolveSensitivities(positions, factorResult.Exposures, base)
	s.logger.Debug().Int("exposures", len(factorResult.Exposures)).Int("sensitivities", len(table.All())).
		Msg("Factor sensitivities resolved")

	outcomes, scenarioIssues := SimulateScenarios(positions, table, s.catalog.Scenarios(), valuation.Total)

	varResults := EstimateVaR(
		VaRInput{Positions: positions, Returns: aligned, Correlation: corr, PortfolioValue: valuation.Total},
		VaROptions{
			Confidences:     s.config.ConfidenceLevels,
			Horizons:        s.config.Horizons,
			Method:          models.VaRMethod(s.config.VaRMethod),
			MinObservations: minObs,
		},
	)

	concentration := AnalyzeConcentration(positions, base)
	positionRisks := PositionRisks(aligned, s.config.TradingDaysPerYear)

	recs := Recommend(RecommendInput{
		Positions:     positions,
		BaseCurrency:  base,
		Concentration: concentration,
		VaR:           varResults,
		Scenarios:     outcomes,
		Correlation:   &corr.Matrix,
		Exposures:     factorResult.Exposures,
		Excluded:      aligned.Excluded,
		Signals:       req.Signals,
	}, s.config.Thresholds)

	var issues []models.Issue
	for _, e := range aligned.Excluded {
		issues = append(issues, models.Issue{
			Kind:    e.Reason,
			Subject: e.Symbol,
			Detail:  e.Detail,
		})
	}
	issues = append(issues, corr.Issues...)
	issues = append(issues, factorIssues...)
	issues = append(issues, factorResult.Issues...)
	issues = append(issues, scenarioIssues...)

	report := &models.RiskReport{
		ID:              s.newID(),
		Portfolio:       req.Snapshot.Name,
		GeneratedAt:     s.now().UTC(),
		BaseCurrency:    base,
		PortfolioValue:  valuation.Total,
		Positions:       positions,
		Window:          window(aligned),
		Correlation:     corr.Matrix,
		Exposures:       nonNil(factorResult.Exposures),
		Sensitivities:   nonNil(table.All()),
		PositionRisks:   positionRisks,
		Scenarios:       outcomes,
		VaR:             nonNil(varResults),
		Concentration:   concentration,
		Recommendations: recs,
		Excluded:        nonNil(aligned.Excluded),
		Issues:          nonNil(issues),
	}
	return report, nil
}

// alignFactors converts factor level histories into return series. Series with
// malformed names are dropped with an issue; short ones are kept per-factor and
// handled by the decomposition.
func (s *Service) alignFactors(histories []models.FactorHistory, minObs int, since time.Time) (*AlignedReturns, []models.Issue) {
	if len(histories) == 0 {
		return nil, nil
	}
	var issues []models.Issue
	converted := make([]models.PriceHistory, 0, len(histories))
	for _, h := range histories {
		if _, _, ok := models.ParseFactor(h.Factor); !ok {
			issues = append(issues, models.Issue{
				Kind:    models.IssueIndeterminateFactor,
				Subject: h.Factor,
				Detail:  "unrecognised factor name; series ignored",
			})
			continue
		}
		converted = append(converted, models.PriceHistory{Symbol: h.Factor, Points: h.Points})
	}
	aligned := AlignReturns(converted, AlignOptions{MinObservations: minObs, Since: since})
	for _, e := range aligned.Excluded {
		s.logger.Debug().Str("factor", e.Symbol).Int("observations", e.Observations).Msg("Factor history too short")
	}
	return aligned, issues
}

func window(aligned *AlignedReturns) models.AnalysisWindow {
	if len(aligned.Dates) == 0 {
		return models.AnalysisWindow{}
	}
	return models.AnalysisWindow{
		Start:        aligned.Dates[0],
		End:          aligned.Dates[len(aligned.Dates)-1],
		Observations: len(aligned.Dates),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
