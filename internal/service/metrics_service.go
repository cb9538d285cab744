package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a point-in-time summary served next to the Prometheus endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	DocumentsRendered        uint64    `json:"documentsRendered"`
	OpenRenderSessions       int64     `json:"openRenderSessions"`
	MailsSent                uint64    `json:"mailsSent"`
	MailsFailed              uint64    `json:"mailsFailed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService owns the Prometheus registry for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	renderDuration  *prometheus.HistogramVec
	renderSessions  prometheus.Gauge
	mailTotal       *prometheus.CounterVec
	otpIssued       *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	renderCount          uint64
	openSessions         int64
	mailSent             uint64
	mailFailed           uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bill_cache_read_seconds",
		Help:    "Latency of bill cache reads",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bill_cache_write_seconds",
		Help:    "Latency of bill cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bill_cache_hits_total",
		Help: "Bill cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bill_cache_misses_total",
		Help: "Bill cache misses",
	})

	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "document_render_duration_seconds",
		Help:    "Time spent rendering bill documents",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind", "outcome"})

	renderSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "document_render_sessions_open",
		Help: "Renderer sessions currently acquired",
	})

	mailTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatch_total",
		Help: "Outgoing mails by purpose and outcome",
	}, []string{"purpose", "outcome"})

	otpIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_issued_total",
		Help: "One-time passwords issued by purpose",
	}, []string{"purpose"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		renderDuration, renderSessions, mailTotal, otpIssued, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		renderDuration:  renderDuration,
		renderSessions:  renderSessions,
		mailTotal:       mailTotal,
		otpIssued:       otpIssued,
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

// ObserveHTTPRequest records request metrics.
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveRender records one document render.
func (m *MetricsService) ObserveRender(kind string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(kind, outcome(err)).Observe(duration.Seconds())
	if err == nil {
		atomic.AddUint64(&m.renderCount, 1)
	}
}

// RenderSessionOpened implements export.SessionObserver.
func (m *MetricsService) RenderSessionOpened() {
	if m == nil {
		return
	}
	m.renderSessions.Inc()
	atomic.AddInt64(&m.openSessions, 1)
}

// RenderSessionClosed implements export.SessionObserver.
func (m *MetricsService) RenderSessionClosed() {
	if m == nil {
		return
	}
	m.renderSessions.Dec()
	atomic.AddInt64(&m.openSessions, -1)
}

// RecordMail counts one mail dispatch attempt.
func (m *MetricsService) RecordMail(purpose string, err error) {
	if m == nil {
		return
	}
	m.mailTotal.WithLabelValues(purpose, outcome(err)).Inc()
	if err != nil {
		atomic.AddUint64(&m.mailFailed, 1)
		return
	}
	atomic.AddUint64(&m.mailSent, 1)
}

// RecordOTPIssued counts a generated one-time password.
func (m *MetricsService) RecordOTPIssued(purpose string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(purpose).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	snap := MetricsSnapshot{
		RequestsTotal:      requests,
		CacheHits:          hits,
		CacheMisses:        misses,
		DocumentsRendered:  atomic.LoadUint64(&m.renderCount),
		OpenRenderSessions: atomic.LoadInt64(&m.openSessions),
		MailsSent:          atomic.LoadUint64(&m.mailSent),
		MailsFailed:        atomic.LoadUint64(&m.mailFailed),
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
	if total := hits + misses; total > 0 {
		snap.CacheHitRatio = float64(hits) / float64(total)
	}
	if requests > 0 {
		snap.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	return snap
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
