package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "teacher_attendance"

// MetricsService owns the Prometheus registry of the attendance API and keeps
// a few atomic counters for the JSON health snapshot.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	attendance      *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	sweeps          *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	attendanceCount      uint64
	notificationFailures uint64
	sweepRuns            uint64
}

// MetricsSnapshot is the JSON view of the in-process counters.
type MetricsSnapshot struct {
	SummaryCacheHitRatio     float64   `json:"summary_cache_hit_ratio"`
	SummaryCacheHits         uint64    `json:"summary_cache_hits"`
	SummaryCacheMisses       uint64    `json:"summary_cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	AttendanceEvents         uint64    `json:"attendance_events"`
	NotificationFailures     uint64    `json:"notification_failures"`
	SweepRuns                uint64    `json:"sweep_runs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "summary_cache",
		Name:      "lookup_seconds",
		Help:      "Latency of summary cache lookups",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "summary_cache",
		Name:      "write_seconds",
		Help:      "Latency of summary cache writes",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "summary_cache",
		Name:      "lookups_total",
		Help:      "Summary cache lookups by result",
	}, []string{"result"})

	attendance := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_total",
		Help:      "Station events by action and outcome code",
	}, []string{"action", "outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by kind, channel and result",
	}, []string{"kind", "channel", "result"})

	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sweeps_total",
		Help:      "Missed-event sweep runs by kind and result",
	}, []string{"kind", "result"})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		attendance, notifications, sweeps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		attendance:      attendance,
		notifications:   notifications,
		sweeps:          sweeps,
	}
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation counts a summary cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAttendanceEvent counts a station event. outcome is "OK" or an error code.
func (m *MetricsService) RecordAttendanceEvent(action, outcome string) {
	if m == nil {
		return
	}
	m.attendance.WithLabelValues(action, outcome).Inc()
	atomic.AddUint64(&m.attendanceCount, 1)
}

// RecordNotification counts one channel delivery.
func (m *MetricsService) RecordNotification(kind, channel string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
		atomic.AddUint64(&m.notificationFailures, 1)
	}
	m.notifications.WithLabelValues(kind, channel, result).Inc()
}

// RecordSweep counts a sweep run.
func (m *MetricsService) RecordSweep(kind, result string) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(kind, result).Inc()
	atomic.AddUint64(&m.sweepRuns, 1)
}

// Snapshot returns aggregated metrics suitable for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		SummaryCacheHitRatio:     cacheRatio,
		SummaryCacheHits:         hits,
		SummaryCacheMisses:       misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		AttendanceEvents:         atomic.LoadUint64(&m.attendanceCount),
		NotificationFailures:     atomic.LoadUint64(&m.notificationFailures),
		SweepRuns:                atomic.LoadUint64(&m.sweepRuns),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
