package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusHooks records pipeline, cache and HTTP events as Prometheus
// metrics. It implements all three hook interfaces.
type PrometheusHooks struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	graphSize     *prometheus.GaugeVec
	groups        prometheus.Histogram
	crossings     prometheus.Histogram
	cacheEvents   *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

// NewPrometheusHooks creates the metrics and registers them with reg.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	h := &PrometheusHooks{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trajgroups_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgroups_stage_errors_total",
			Help: "Pipeline stage failures",
		}, []string{"stage"}),
		graphSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trajgroups_graph_size",
			Help: "Size of the last critical graph built, by element",
		}, []string{"element"}),
		groups: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trajgroups_groups",
			Help:    "Number of groups per run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		crossings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trajgroups_crossings",
			Help:    "Crossings of the computed ordering",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgroups_cache_events_total",
			Help: "Cache lookups and writes",
		}, []string{"type", "event"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgroups_cache_written_bytes_total",
			Help: "Bytes written to the cache",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajgroups_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trajgroups_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		h.stageDuration, h.stageErrors, h.graphSize, h.groups, h.crossings,
		h.cacheEvents, h.cacheBytes, h.requests, h.reqDuration,
	)
	return h
}

func (h *PrometheusHooks) stage(name string, d time.Duration, err error) {
	h.stageDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		h.stageErrors.WithLabelValues(name).Inc()
	}
}

// OnBuildStart implements PipelineHooks.
func (h *PrometheusHooks) OnBuildStart(context.Context, string, float64) {}

// OnBuildComplete implements PipelineHooks.
func (h *PrometheusHooks) OnBuildComplete(_ context.Context, _ string, vertices, edges int, d time.Duration, err error) {
	h.stage("build", d, err)
	if err == nil {
		h.graphSize.WithLabelValues("vertices").Set(float64(vertices))
		h.graphSize.WithLabelValues("edges").Set(float64(edges))
	}
}

// OnExtractComplete implements PipelineHooks.
func (h *PrometheusHooks) OnExtractComplete(_ context.Context, groups int, d time.Duration, err error) {
	h.stage("extract", d, err)
	if err == nil {
		h.groups.Observe(float64(groups))
	}
}

// OnOrderStart implements PipelineHooks.
func (h *PrometheusHooks) OnOrderStart(context.Context, int) {}

// OnOrderComplete implements PipelineHooks.
func (h *PrometheusHooks) OnOrderComplete(_ context.Context, _ string, crossings int, d time.Duration, err error) {
	h.stage("order", d, err)
	if err == nil {
		h.crossings.Observe(float64(crossings))
	}
}

// OnCacheHit implements CacheHooks.
func (h *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements CacheHooks.
func (h *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements CacheHooks.
func (h *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheEvents.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// OnRequest implements HTTPHooks.
func (h *PrometheusHooks) OnRequest(context.Context, string, string) {}

// OnResponse implements HTTPHooks.
func (h *PrometheusHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	h.reqDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ PipelineHooks = (*PrometheusHooks)(nil)
	_ CacheHooks    = (*PrometheusHooks)(nil)
	_ HTTPHooks     = (*PrometheusHooks)(nil)
)
