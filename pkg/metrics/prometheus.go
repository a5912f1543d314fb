package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PairWatch/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	stale    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	pairs    *prometheus.GaugeVec
	averages *prometheus.GaugeVec
	topScore prometheus.Gauge
}

// New registers the recorder's collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairwatch_fetches_total",
				Help: "Pair results and series received, by source",
			},
			[]string{"source"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		stale: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairwatch_stale_series_total",
				Help: "Series responses discarded because the window size changed",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		pairs: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairwatch_pairs",
				Help: "Pairs in the last aggregation, by bucket",
			},
			[]string{"bucket"},
		),
		averages: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairwatch_average",
				Help: "Averages from the last aggregation",
			},
			[]string{"measure"},
		),
		topScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairwatch_top_candidate_score",
			Help: "Score of the best ranked candidate",
		}),
	}
}

func (r *Recorder) RecordFetch(source string) {
	r.fetches.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordStale(kind string) {
	r.stale.WithLabelValues(kind).Inc()
}

// RecordStatistics mirrors an aggregation into gauges.
func (r *Recorder) RecordStatistics(s models.Statistics) {
	r.pairs.WithLabelValues("total").Set(float64(s.Total))
	r.pairs.WithLabelValues("high_correlation").Set(float64(s.HighCorrelationCount))
	r.pairs.WithLabelValues("strong_signal").Set(float64(s.StrongSignalCount))
	r.pairs.WithLabelValues("has_signal").Set(float64(s.HasSignalCount))
	r.averages.WithLabelValues("correlation").Set(s.AvgCorrelation)
	r.averages.WithLabelValues("abs_zscore").Set(s.AvgAbsZScore)

	top := 0.0
	if len(s.RankedCandidates) > 0 {
		top = s.RankedCandidates[0].Score
	}
	r.topScore.Set(top)
}
