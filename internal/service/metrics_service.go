package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// MetricsService owns the Prometheus registry. It also observes live query
// subscriptions and views.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrite      prometheus.Histogram

	subscriptions  *prometheus.GaugeVec
	snapshots      *prometheus.CounterVec
	subscriptionEr *prometheus.CounterVec
	views          *prometheus.GaugeVec
	liveSessions   prometheus.Gauge
	blobCleanups   *prometheus.CounterVec
}

func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "live_subscriptions_active",
			Help: "Open live query subscriptions",
		}, []string{"collection"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_snapshots_delivered_total",
			Help: "Snapshots handed to subscribers",
		}, []string{"collection"}),
		subscriptionEr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_subscription_errors_total",
			Help: "Failed live query fetches",
		}, []string{"collection"}),
		views: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "live_views_mounted",
			Help: "Mounted views by screen",
		}, []string{"screen"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_sessions_connected",
			Help: "Connected live channel clients",
		}),
		blobCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blob_cleanups_total",
			Help: "Orphaned blob removals by outcome",
		}, []string{"outcome"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLookups, m.cacheWrite,
		m.subscriptions, m.snapshots, m.subscriptionEr, m.views, m.liveSessions, m.blobCleanups, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves /metrics.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

func (m *MetricsService) SubscriptionOpened(c models.Collection) {
	if m != nil {
		m.subscriptions.WithLabelValues(string(c)).Inc()
	}
}

func (m *MetricsService) SubscriptionClosed(c models.Collection) {
	if m != nil {
		m.subscriptions.WithLabelValues(string(c)).Dec()
	}
}

func (m *MetricsService) SnapshotDelivered(c models.Collection) {
	if m != nil {
		m.snapshots.WithLabelValues(string(c)).Inc()
	}
}

func (m *MetricsService) SubscriptionFailed(c models.Collection) {
	if m != nil {
		m.subscriptionEr.WithLabelValues(string(c)).Inc()
	}
}

func (m *MetricsService) ViewMounted(screen Screen) {
	if m != nil {
		m.views.WithLabelValues(string(screen)).Inc()
	}
}

func (m *MetricsService) ViewUnmounted(screen Screen) {
	if m != nil {
		m.views.WithLabelValues(string(screen)).Dec()
	}
}

func (m *MetricsService) LiveSessionConnected() {
	if m != nil {
		m.liveSessions.Inc()
	}
}

func (m *MetricsService) LiveSessionDisconnected() {
	if m != nil {
		m.liveSessions.Dec()
	}
}

func (m *MetricsService) RecordBlobCleanup(outcome string) {
	if m != nil {
		m.blobCleanups.WithLabelValues(outcome).Inc()
	}
}
