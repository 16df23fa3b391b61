package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the entity
// managers.
type MetricsService struct {
	registry      *prometheus.Registry
	handler       http.Handler
	opDuration    *prometheus.HistogramVec
	conflictTotal *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
}

// NewMetricsService registers the registry's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_operation_duration_seconds",
		Help:    "Duration of entity manager operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity", "operation", "outcome"})

	conflictTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_conflicts_total",
		Help: "Unique-constraint conflicts surfaced to callers",
	}, []string{"entity"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total catalog cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total catalog cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(opDuration, conflictTotal, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		opDuration:    opDuration,
		conflictTotal: conflictTotal,
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveOperation records duration and outcome of a manager operation.
func (s *MetricsService) ObserveOperation(entity, operation, outcome string, duration time.Duration) {
	if s == nil {
		return
	}
	s.opDuration.WithLabelValues(entity, operation, outcome).Observe(duration.Seconds())
}

// ObserveConflict counts a unique-constraint conflict for an entity.
func (s *MetricsService) ObserveConflict(entity string) {
	if s == nil {
		return
	}
	s.conflictTotal.WithLabelValues(entity).Inc()
}

// ObserveCacheHit counts a catalog cache hit.
func (s *MetricsService) ObserveCacheHit() {
	if s == nil {
		return
	}
	s.cacheHits.Inc()
}

// ObserveCacheMiss counts a catalog cache miss.
func (s *MetricsService) ObserveCacheMiss() {
	if s == nil {
		return
	}
	s.cacheMisses.Inc()
}
