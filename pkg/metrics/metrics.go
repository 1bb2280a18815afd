// Package metrics 提供基于Prometheus的指标收集框架
//
// # 核心概念
//
// **1. Counter（计数器）**：只增不减的累计值
//   - 示例：HTTP请求总数、借出总数、通知发送总数
//   - 特点：只能调用Inc()递增
//
// **2. Gauge（仪表盘）**：可增可减的瞬时值
//   - 示例：当前SSE连接数、goroutine数量
//   - 特点：可以调用Inc()、Dec()、Set()
//
// **3. Histogram（直方图）**：观测值的分布
//   - 示例：HTTP请求耗时、事件处理耗时
//   - 特点：自动计算分位数（P50、P90、P99）
//
// # DO/DON'T对比
//
// ❌ DON'T: 手动记录日志统计（无法聚合、查询困难）
//
//	func BorrowBook() {
//	    start := time.Now()
//	    // ... 业务逻辑 ...
//	    log.Printf("借出耗时： %v", time.Since(start)) // ❌ 无法查询P99耗时
//	}
//
// ✅ DO: 使用Prometheus指标
//
//	func BorrowBook() {
//	    start := time.Now()
//	    // ... 业务逻辑 ...
//	    metrics.ObserveHistogram(metrics.BorrowDuration, time.Since(start).Seconds())
//	    metrics.IncCounterVec(metrics.BorrowsTotal, map[string]string{"result": "success"})
//	}
//
// 优点：自动聚合、可查分位数、可视化（Grafana）、可告警
//
// # 命名规范
//
// 1. **Counter**: 以`_total`结尾（borrows_total）
// 2. **Histogram**: 以单位结尾（http_request_duration_seconds）
// 3. **Gauge**: 使用现在时态（sse_connections_active）
//
// # 最佳实践
//
// 1. 用标签区分维度（method/path/status）
// 2. 避免高基数标签：❌ user_id ✅ status
// 3. Histogram桶按业务耗时范围设置
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// initialized 标记是否已初始化（防止重复注册）
	initialized bool

	// HTTP请求相关指标

	// HTTPRequestsTotal HTTP请求总数（Counter）
	// 标签：method（GET/POST）、path（/api/v1/borrowings）、status（200/500）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP请求耗时（Histogram）
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数（Gauge）
	HTTPRequestsInProgress prometheus.Gauge

	// 借阅业务指标

	// BorrowsTotal 借出总数（Counter）
	// 标签：result（success/unavailable/duplicate/error）
	BorrowsTotal *prometheus.CounterVec

	// ReturnsTotal 归还总数（Counter）
	// 标签：result（success/already_returned/error）
	ReturnsTotal *prometheus.CounterVec

	// BorrowDuration 借出事务耗时（Histogram）
	BorrowDuration prometheus.Histogram

	// WaitlistEnqueuedTotal 排队入队总数（Counter）
	WaitlistEnqueuedTotal prometheus.Counter

	// WaitlistFulfilledTotal 排队出队（履约）总数（Counter）
	WaitlistFulfilledTotal prometheus.Counter

	// OverdueSweptTotal 逾期巡检标记的记录总数（Counter）
	OverdueSweptTotal prometheus.Counter

	// 通知指标

	// NotificationsTotal 通知发送总数（Counter）
	// 标签：result（delivered/inbox_only/failed）
	NotificationsTotal *prometheus.CounterVec

	// SSEConnectionsActive 当前SSE订阅连接数（Gauge）
	SSEConnectionsActive prometheus.Gauge

	// 熔断器指标

	// CircuitBreakerState 熔断器状态（Gauge）
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	// 消息队列指标

	// MessagesPublishedTotal 消息发布总数（Counter）
	// 标签：routing_key（路由键）
	MessagesPublishedTotal *prometheus.CounterVec

	// MessagesConsumedTotal 消息消费总数（Counter）
	// 标签：result（success/failure）
	MessagesConsumedTotal *prometheus.CounterVec

	// MessageProcessingDuration 归还事件处理耗时（Histogram）
	MessageProcessingDuration prometheus.Histogram
)

// InitMetrics 初始化所有Prometheus指标
//
// 必须在程序启动时调用一次，用于注册所有指标到全局Registry
//
// 设计要点：
// 1. 使用promauto.New*自动注册到默认Registry
// 2. Counter使用*Vec支持标签（多维度统计）
// 3. Histogram的Buckets根据业务场景定制
func InitMetrics() {
	// 防止重复初始化
	if initialized {
		return
	}
	initialized = true

	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP请求耗时（秒）",
			// 桶设置：1ms、10ms、100ms、500ms、1s、5s、10s
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "正在处理的HTTP请求数",
		},
	)

	// 借阅业务指标
	BorrowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borrows_total",
			Help: "借出请求总数",
		},
		[]string{"result"}, // success/unavailable/duplicate/error
	)

	ReturnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_total",
			Help: "归还请求总数",
		},
		[]string{"result"}, // success/already_returned/error
	)

	BorrowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "borrow_duration_seconds",
			Help: "借出事务耗时（秒）",
			// 借出走行锁事务，锁竞争时耗时上浮
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	WaitlistEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_enqueued_total",
			Help: "排队入队总数",
		},
	)

	WaitlistFulfilledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_fulfilled_total",
			Help: "排队出队(履约)总数",
		},
	)

	OverdueSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "overdue_swept_total",
			Help: "逾期巡检标记的借阅记录总数",
		},
	)

	// 通知指标
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "通知发送总数",
		},
		[]string{"result"}, // delivered/inbox_only/failed
	)

	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "当前SSE订阅连接数",
		},
	)

	// 熔断器指标
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
		},
		[]string{"name"},
	)

	// 消息队列指标
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "消息发布总数",
		},
		[]string{"routing_key"},
	)

	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "消息消费总数",
		},
		[]string{"result"},
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "归还事件处理耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)
}

// IncCounter 递增Counter（便捷函数）
func IncCounter(counter prometheus.Counter) {
	counter.Inc()
}

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	counter.With(labels).Inc()
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	gauge.Dec()
}

// SetGauge 设置Gauge值
func SetGauge(gauge prometheus.Gauge, value float64) {
	gauge.Set(value)
}

// SetGaugeVec 设置GaugeVec值（带标签）
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	gauge.With(labels).Set(value)
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	histogram.Observe(value)
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	histogram.With(labels).Observe(value)
}
