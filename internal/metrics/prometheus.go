// Package metrics exposes Prometheus instrumentation for the API and the
// ingest daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homeclimate/internal/types"
)

const namespace = "homeclimate"

// Prometheus holds every collector. It implements core.MetricsCollector,
// weather.CacheRecorder and ingest.Recorder.
type Prometheus struct {
	gatherer prometheus.Gatherer

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	adviceTotal     *prometheus.CounterVec
	moldRiskTotal   *prometheus.CounterVec
	cacheTotal      *prometheus.CounterVec
	readingsTotal   *prometheus.CounterVec
	adviceDuration  prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		gatherer: reg,
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		adviceTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advice_issued_total",
			Help:      "Recommendations issued by state",
		}, []string{"state"}),
		moldRiskTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mold_risk_evaluations_total",
			Help:      "Mold risk evaluations by level",
		}, []string{"level"}),
		cacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by cache and result",
		}, []string{"cache", "result"}),
		readingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Sensor messages by outcome",
		}, []string{"outcome"}),
		adviceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "advice_duration_seconds",
			Help:      "End-to-end device advice latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// RecordRequest implements core.MetricsCollector.
func (p *Prometheus) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	p.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAdvice counts one issued recommendation and its mold level.
func (p *Prometheus) RecordAdvice(state types.RecommendationState, level types.RiskLevel, duration time.Duration) {
	p.adviceTotal.WithLabelValues(string(state)).Inc()
	p.moldRiskTotal.WithLabelValues(string(level)).Inc()
	p.adviceDuration.Observe(duration.Seconds())
}

// RecordCacheResult implements weather.CacheRecorder.
func (p *Prometheus) RecordCacheResult(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheTotal.WithLabelValues(cacheName, result).Inc()
}

// RecordIngest implements ingest.Recorder.
func (p *Prometheus) RecordIngest(outcome string) {
	p.readingsTotal.WithLabelValues(outcome).Inc()
}
