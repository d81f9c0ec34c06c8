package mongomap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface with Prometheus
// collectors. Engine tags ("op", "collection") become label values.
type PrometheusMetrics struct {
	opsTotal    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	results     *prometheus.HistogramVec
	gauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a Prometheus metrics instance registered on
// the given registry. If registry is nil the default registerer is used.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	return &PrometheusMetrics{
		opsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mongomap",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total number of successful engine operations",
			},
			[]string{"op", "collection"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mongomap",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Total number of failed engine operations",
			},
			[]string{"op", "collection"},
		),
		opDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mongomap",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "collection"},
		),
		results: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mongomap",
				Subsystem: "query",
				Name:      "result_documents",
				Help:      "Documents returned per query",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
			[]string{"op", "collection"},
		),
		gauges: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mongomap",
				Subsystem: "engine",
				Name:      "gauge",
				Help:      "Free-form engine gauges",
			},
			[]string{"name"},
		),
	}
}

// tagValue extracts the value for a tag key from alternating key/value tags.
func tagValue(tags []string, key string) string {
	for i := 0; i+1 < len(tags); i += 2 {
		if tags[i] == key {
			return tags[i+1]
		}
	}
	return "unknown"
}

func (p *PrometheusMetrics) labels(tags []string) prometheus.Labels {
	return prometheus.Labels{
		"op":         tagValue(tags, "op"),
		"collection": tagValue(tags, "collection"),
	}
}

func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	switch name {
	case MetricOpSuccess:
		p.opsTotal.With(p.labels(tags)).Inc()
	case MetricOpError:
		p.errorsTotal.With(p.labels(tags)).Inc()
	}
}

func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.gauges.WithLabelValues(name).Set(value)
}

func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	if name == MetricQueryResults {
		p.results.With(p.labels(tags)).Observe(value)
	}
}

func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	if name == MetricOpDuration {
		p.opDuration.With(p.labels(tags)).Observe(duration.Seconds())
	}
}
