package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
// Every recorder is safe to call on a nil receiver.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	proposalSittings  *prometheus.CounterVec
	infeasible        *prometheus.CounterVec
	confirmedSittings prometheus.Counter
	overrides         *prometheus.CounterVec
	verdictTransition *prometheus.CounterVec
	effects           *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	proposalCount        uint64
	confirmedCount       uint64
	finalizedCount       uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	proposalSittings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jury_proposed_sittings_total",
		Help: "Sittings produced by proposal generation, by feasibility",
	}, []string{"valid"})

	infeasible := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jury_infeasible_sittings_total",
		Help: "Infeasible proposed sittings by reason",
	}, []string{"reason"})

	confirmedSittings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jury_confirmed_sittings_total",
		Help: "Sittings persisted through proposal confirmation",
	})

	overrides := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jury_overrides_total",
		Help: "Manual sitting overrides by kind and outcome",
	}, []string{"kind", "outcome"})

	verdictTransition := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verdict_transitions_total",
		Help: "Verdict state transitions by target status",
	}, []string{"status"})

	effects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verdict_effects_total",
		Help: "Downstream verdict effects by job type and outcome",
	}, []string{"type", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		proposalSittings, infeasible, confirmedSittings, overrides, verdictTransition, effects, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		proposalSittings:  proposalSittings,
		infeasible:        infeasible,
		confirmedSittings: confirmedSittings,
		overrides:         overrides,
		verdictTransition: verdictTransition,
		effects:           effects,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordProposalBatch counts the sittings of a generated batch.
func (m *MetricsService) RecordProposalBatch(batch *models.ProposalBatch) {
	if m == nil || batch == nil {
		return
	}
	atomic.AddUint64(&m.proposalCount, 1)
	for _, sitting := range batch.Sittings {
		if sitting.Valid {
			m.proposalSittings.WithLabelValues("true").Inc()
			continue
		}
		m.proposalSittings.WithLabelValues("false").Inc()
		m.infeasible.WithLabelValues(string(sitting.Reason)).Inc()
	}
}

// RecordConfirmedSittings counts sittings persisted by a confirmation.
func (m *MetricsService) RecordConfirmedSittings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.confirmedSittings.Add(float64(n))
	atomic.AddUint64(&m.confirmedCount, uint64(n))
}

// RecordOverride counts a swap or membership edit attempt.
func (m *MetricsService) RecordOverride(kind string, err error) {
	if m == nil {
		return
	}
	m.overrides.WithLabelValues(kind, outcomeLabel(err)).Inc()
}

// RecordVerdictTransition counts a verdict entering status.
func (m *MetricsService) RecordVerdictTransition(status models.VerdictStatus) {
	if m == nil {
		return
	}
	m.verdictTransition.WithLabelValues(string(status)).Inc()
	if status == models.VerdictStatusFinalized {
		atomic.AddUint64(&m.finalizedCount, 1)
	}
}

// RecordEffect counts a downstream job attempt.
func (m *MetricsService) RecordEffect(jobType string, err error) {
	if m == nil {
		return
	}
	m.effects.WithLabelValues(jobType, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Snapshot returns aggregated metrics suitable for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ProposalsGenerated:       atomic.LoadUint64(&m.proposalCount),
		SittingsConfirmed:        atomic.LoadUint64(&m.confirmedCount),
		VerdictsFinalized:        atomic.LoadUint64(&m.finalizedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
