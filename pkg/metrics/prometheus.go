package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	Registry *prometheus.Registry

	// Training metrics
	BatchLoss     *prometheus.GaugeVec
	BatchesTotal  *prometheus.CounterVec
	EpochDuration prometheus.Histogram
	EpochLoss     prometheus.Gauge

	// Evaluation metrics
	MeanRank *prometheus.GaugeVec
	Hits     *prometheus.GaugeVec
	AUC      *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// NewPrometheusMetrics creates a metrics bundle on its own registry
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWith(prometheus.NewRegistry())
}

// NewPrometheusMetricsWith registers the bundle on reg
func NewPrometheusMetricsWith(reg *prometheus.Registry) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		Registry: reg,

		// Training metrics
		BatchLoss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ontoml_batch_loss",
				Help: "Objective of the last batch per normal form",
			},
			[]string{"kind"},
		),

		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ontoml_batches_total",
				Help: "Total number of training batches per normal form",
			},
			[]string{"kind"},
		),

		EpochDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ontoml_epoch_duration_seconds",
				Help:    "Training epoch duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),

		EpochLoss: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ontoml_epoch_loss",
				Help: "Mean objective of the last epoch",
			},
		),

		// Evaluation metrics
		MeanRank: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ontoml_mean_rank",
				Help: "Mean rank of the true tail",
			},
			[]string{"filtered"},
		),

		Hits: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ontoml_hits",
				Help: "Number of test pairs ranked at or above k",
			},
			[]string{"k", "filtered"},
		),

		AUC: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ontoml_rank_auc",
				Help: "Mean ranking AUC",
			},
			[]string{"filtered"},
		),

		// Cache metrics
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ontoml_distance_cache_hits_total",
				Help: "Total number of distance row cache hits",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ontoml_distance_cache_misses_total",
				Help: "Total number of distance row cache misses",
			},
		),
	}
}

// RecordBatch records the objective of one batch
func (m *PrometheusMetrics) RecordBatch(kind string, loss float64) {
	m.BatchLoss.WithLabelValues(kind).Set(loss)
	m.BatchesTotal.WithLabelValues(kind).Inc()
}

// RecordEpoch records an epoch's mean loss and duration
func (m *PrometheusMetrics) RecordEpoch(loss float64, duration time.Duration) {
	m.EpochLoss.Set(loss)
	m.EpochDuration.Observe(duration.Seconds())
}

// RecordRanking records one set of ranking metrics
func (m *PrometheusMetrics) RecordRanking(filtered bool, meanRank, auc float64, hits map[int]int) {
	f := strconv.FormatBool(filtered)
	m.MeanRank.WithLabelValues(f).Set(meanRank)
	m.AUC.WithLabelValues(f).Set(auc)
	for k, n := range hits {
		m.Hits.WithLabelValues(strconv.Itoa(k), f).Set(float64(n))
	}
}

// RecordCacheHit records a cache hit
func (m *PrometheusMetrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func (m *PrometheusMetrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}
