package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/extract"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the import pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	importsTotal   *prometheus.CounterVec
	importRows     *prometheus.CounterVec
	importDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	importsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extract_imports_total",
		Help: "Total extract imports by kind and outcome",
	}, []string{"kind", "outcome"})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extract_import_rows_total",
		Help: "Row dispositions across extract imports",
	}, []string{"kind", "disposition"})

	importDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extract_import_duration_seconds",
		Help:    "Wall time spent reconciling one extract",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	registry.MustRegister(
		prometheus.NewGoCollector(),
		requestDuration,
		requestTotal,
		importsTotal,
		importRows,
		importDuration,
		cacheHits,
		cacheMisses,
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		importsTotal:    importsTotal,
		importRows:      importRows,
		importDuration:  importDuration,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveRequest records one handled HTTP request.
func (s *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveImport records a completed (or failed) reconciliation run.
func (s *MetricsService) ObserveImport(kind extract.Kind, outcome string, result *aurora.Result, duration time.Duration) {
	k := string(kind)
	s.importsTotal.WithLabelValues(k, outcome).Inc()
	s.importDuration.WithLabelValues(k).Observe(duration.Seconds())
	if result == nil {
		return
	}
	s.importRows.WithLabelValues(k, "saved").Add(float64(result.SavedRows))
	s.importRows.WithLabelValues(k, "ignored").Add(float64(result.IgnoredRows))
	s.importRows.WithLabelValues(k, "deregistered").Add(float64(result.Deregistered))
}

// RecordCacheHit counts a cache hit.
func (s *MetricsService) RecordCacheHit() { s.cacheHits.Inc() }

// RecordCacheMiss counts a cache miss.
func (s *MetricsService) RecordCacheMiss() { s.cacheMisses.Inc() }
