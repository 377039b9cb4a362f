package monitoring

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 缓存指标
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// 刷新指标
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	SourcePages     prometheus.Counter
	TagsStored      prometheus.Gauge

	// 系统指标
	SystemUptime prometheus.Gauge
	MemoryUsage  prometheus.Gauge
	PanicsTotal  prometheus.Counter

	gatherer  prometheus.Gatherer
	startedAt time.Time
}

// NewMetrics 创建监控指标并注册到 reg
//
// reg 为 nil 时使用默认注册表；测试中传入 prometheus.NewRegistry() 以免重复注册。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sotags_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sotags_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sotags_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sotags_cache_hits_total",
				Help: "Total number of tag listing cache hits",
			},
		),

		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sotags_cache_misses_total",
				Help: "Total number of tag listing cache misses",
			},
		),

		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sotags_refresh_total",
				Help: "Total number of tag refreshes by result",
			},
			[]string{"result"},
		),

		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sotags_refresh_duration_seconds",
				Help:    "Tag refresh duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
		),

		SourcePages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sotags_source_pages_fetched_total",
				Help: "Total number of tag pages fetched from the source",
			},
		),

		TagsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sotags_tags_stored",
				Help: "Number of tags in the current snapshot",
			},
		),

		SystemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sotags_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sotags_memory_usage_bytes",
				Help: "Memory usage in bytes",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sotags_panics_total",
				Help: "Total number of panics",
			},
		),

		gatherer:  gatherer,
		startedAt: time.Now(),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordRefresh 记录一次刷新
func (m *Metrics) RecordRefresh(duration time.Duration, stored int, err error) {
	m.RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		m.RefreshTotal.WithLabelValues("failure").Inc()
		return
	}
	m.RefreshTotal.WithLabelValues("success").Inc()
	m.TagsStored.Set(float64(stored))
}

// RecordSourcePage 记录一次成功的分页拉取
func (m *Metrics) RecordSourcePage() {
	m.SourcePages.Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateSystemMetrics 更新运行时间与内存使用
func (m *Metrics) UpdateSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.MemoryUsage.Set(float64(ms.Alloc))
	m.SystemUptime.Set(time.Since(m.startedAt).Seconds())
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
