// Package metrics exposes Prometheus metrics for recommendations and catalog reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recommendation outcomes used as the "status" label.
const (
	StatusOK           = "ok"
	StatusInvalid      = "invalid"
	StatusUnavailable  = "unavailable"
	StatusEmbedError   = "embed_error"
	StatusRankingError = "error"
)

// Metrics holds the collectors on a private registry, so independent instances
// can coexist (for example in tests).
type Metrics struct {
	registry *prometheus.Registry

	recommendations  *prometheus.CounterVec
	recommendLatency prometheus.Histogram
	embedLatency     prometheus.Histogram
	catalogMovies    prometheus.Gauge
	catalogDims      prometheus.Gauge
	catalogReloads   *prometheus.CounterVec
}

// New registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		recommendations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eiga_recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		}, []string{"status"}),
		recommendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eiga_recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		embedLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eiga_embed_duration_seconds",
			Help:    "Query embedding latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		catalogMovies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eiga_catalog_movies",
			Help: "Number of movies in the current catalog snapshot",
		}),
		catalogDims: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eiga_catalog_dimensions",
			Help: "Embedding dimension of the current catalog snapshot",
		}),
		catalogReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eiga_catalog_reloads_total",
			Help: "Total number of catalog reload attempts by result",
		}, []string{"result"}),
	}
}

// ObserveRecommendation records one request's outcome and latency.
func (m *Metrics) ObserveRecommendation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(status).Inc()
	m.recommendLatency.Observe(d.Seconds())
}

// ObserveEmbed records query embedding latency.
func (m *Metrics) ObserveEmbed(d time.Duration) {
	if m == nil {
		return
	}
	m.embedLatency.Observe(d.Seconds())
}

// SetCatalog records the size of the newly installed catalog.
func (m *Metrics) SetCatalog(movies, dimensions int) {
	if m == nil {
		return
	}
	m.catalogMovies.Set(float64(movies))
	m.catalogDims.Set(float64(dimensions))
}

// ObserveReload counts a catalog reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.catalogReloads.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
