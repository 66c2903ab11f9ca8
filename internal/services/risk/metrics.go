package risk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/enori/stock-skills/internal/models"
)

// Metrics holds Prometheus instruments for analysis runs. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Runs            *prometheus.CounterVec
	Duration        prometheus.Histogram
	Excluded        prometheus.Counter
	Recommendations *prometheus.CounterVec
}

// NewMetrics creates and registers the analysis metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockrisk",
				Subsystem: "analysis",
				Name:      "runs_total",
				Help:      "Total number of risk analysis runs",
			},
			[]string{"status"},
		),
		Duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "stockrisk",
				Subsystem: "analysis",
				Name:      "duration_seconds",
				Help:      "Time taken to run a risk analysis",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Excluded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stockrisk",
				Subsystem: "analysis",
				Name:      "excluded_positions_total",
				Help:      "Positions excluded from statistical analysis for insufficient history",
			},
		),
		Recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockrisk",
				Subsystem: "analysis",
				Name:      "recommendations_total",
				Help:      "Recommendations emitted, by severity",
			},
			[]string{"severity"},
		),
	}
}

func (m *Metrics) observeFailure(start time.Time) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues("error").Inc()
	m.Duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeReport(start time.Time, report *models.RiskReport) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues("ok").Inc()
	m.Duration.Observe(time.Since(start).Seconds())
	m.Excluded.Add(float64(len(report.InsufficientData())))
	for _, r := range report.Recommendations {
		m.Recommendations.WithLabelValues(string(r.Severity)).Inc()
	}
}
