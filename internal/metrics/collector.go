package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。
// 同时实现 llm.Observer、tools.SearchObserver、speech.Observer、
// workflow.Observer、council.Observer 与 persistence.Observer。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	// 搜索与语音
	searchRequestsTotal *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	ttsRequestsTotal    *prometheus.CounterVec
	ttsDuration         *prometheus.HistogramVec

	// 工作流指标
	workflowStepsTotal   *prometheus.CounterVec
	workflowStepDuration *prometheus.HistogramVec
	workflowRunsTotal    *prometheus.CounterVec
	workflowRunDuration  *prometheus.HistogramVec
	workflowRunSteps     prometheus.Histogram

	// 议会指标
	councilTurnsTotal   *prometheus.CounterVec
	councilTurnDuration *prometheus.HistogramVec
	searchGateTotal     *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	eventSubscribers    prometheus.Gauge

	// 存储指标
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// 搜索与语音
	c.searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of web search gateway requests",
		},
		[]string{"provider", "status"},
	)

	c.searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Web search duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	c.ttsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_requests_total",
			Help:      "Total number of speech synthesis requests",
		},
		[]string{"provider", "status"},
	)

	c.ttsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_duration_seconds",
			Help:      "Speech synthesis duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// 工作流指标
	c.workflowStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Total number of executed workflow steps",
		},
		[]string{"category", "status"},
	)

	c.workflowStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Workflow step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"category"},
	)

	c.workflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"status"},
	)

	c.workflowRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	c.workflowRunSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_steps",
			Help:      "Number of agent steps executed per workflow run",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// 议会指标
	c.councilTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "council_turns_total",
			Help:      "Total number of council turns",
		},
		[]string{"kind", "status"},
	)

	c.councilTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "council_turn_duration_seconds",
			Help:      "Council turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	c.searchGateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "council_search_gate_total",
			Help:      "Search gate transitions",
		},
		[]string{"transition"},
	)

	c.activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "council_sessions_active",
			Help:      "Number of open council sessions",
		},
	)

	c.eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Number of connected event stream subscribers",
		},
	)

	// 存储指标
	c.storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_store_operations_total",
			Help:      "Total number of workflow log store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "log_store_operation_duration_seconds",
			Help:      "Workflow log store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(max(requestSize, 0)))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(max(responseSize, 0)))
}

// =============================================================================
// 🤖 LLM / 搜索 / 语音
// =============================================================================

// ObserveInvocation 记录一次模型调用
func (c *Collector) ObserveInvocation(provider, model, status string, duration time.Duration) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// ObserveSearch 记录一次搜索网关调用
func (c *Collector) ObserveSearch(provider, status string, duration time.Duration) {
	c.searchRequestsTotal.WithLabelValues(provider, status).Inc()
	c.searchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveSynthesis 记录一次分段语音合成
func (c *Collector) ObserveSynthesis(provider, status string, duration time.Duration) {
	c.ttsRequestsTotal.WithLabelValues(provider, status).Inc()
	c.ttsDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// =============================================================================
// 🔀 工作流
// =============================================================================

// ObserveWorkflowStep 记录单个步骤
func (c *Collector) ObserveWorkflowStep(category, status string, d time.Duration) {
	c.workflowStepsTotal.WithLabelValues(category, status).Inc()
	c.workflowStepDuration.WithLabelValues(category).Observe(d.Seconds())
}

// ObserveWorkflowRun 记录一次完整运行
func (c *Collector) ObserveWorkflowRun(status string, steps int, d time.Duration) {
	c.workflowRunsTotal.WithLabelValues(status).Inc()
	c.workflowRunDuration.WithLabelValues(status).Observe(d.Seconds())
	c.workflowRunSteps.Observe(float64(steps))
}

// =============================================================================
// 🏛️ 议会
// =============================================================================

// ObserveCouncilTurn 记录一个议会回合
func (c *Collector) ObserveCouncilTurn(kind, status string, d time.Duration) {
	c.councilTurnsTotal.WithLabelValues(kind, status).Inc()
	c.councilTurnDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveSearchGate 记录搜索审批门的状态变化
func (c *Collector) ObserveSearchGate(transition string) {
	c.searchGateTotal.WithLabelValues(transition).Inc()
}

// SetActiveSessions 设置当前会话数
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// SetEventSubscribers 设置事件流订阅数
func (c *Collector) SetEventSubscribers(n int) {
	c.eventSubscribers.Set(float64(n))
}

// =============================================================================
// 🗄️ 存储与数据库
// =============================================================================

// ObserveStoreOp 记录一次日志存储操作
func (c *Collector) ObserveStoreOp(backend, op, status string, d time.Duration) {
	c.storeOpsTotal.WithLabelValues(backend, op, status).Inc()
	c.storeOpDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
