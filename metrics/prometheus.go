package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// 交易指标
	tradeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperarena_trade_total",
			Help: "Total number of paper trades attempted",
		},
		[]string{"action", "symbol", "result"},
	)

	tradeVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperarena_trade_volume_total",
			Help: "Total traded volume in base currency",
		},
		[]string{"action", "symbol"},
	)

	tradeRealizedPnl = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperarena_trade_realized_profit_total",
			Help: "Cumulative realized profit from sells",
		},
		[]string{"symbol"},
	)

	// 行情指标
	priceRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperarena_price_request_total",
			Help: "Total number of upstream price requests",
		},
		[]string{"endpoint", "status"},
	)

	priceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperarena_price_request_duration_seconds",
			Help:    "Upstream price request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"endpoint"},
	)

	currentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paperarena_current_price",
			Help: "Last observed market price",
		},
		[]string{"symbol"},
	)

	// AI 指标
	aiRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperarena_ai_request_total",
			Help: "Total number of AI recommendation requests",
		},
		[]string{"provider", "status"},
	)

	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperarena_ai_request_duration_seconds",
			Help:    "AI recommendation request duration in seconds",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0, 60.0},
		},
		[]string{"provider"},
	)

	// 会话指标
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paperarena_active_sessions",
			Help: "Number of active dashboard sessions",
		},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paperarena_goroutine_count",
			Help: "Number of goroutines",
		},
	)

	processCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paperarena_process_cpu_percent",
			Help: "Process CPU usage percentage",
		},
	)

	processMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paperarena_process_memory_bytes",
			Help: "Process resident memory in bytes",
		},
	)

	processMemoryPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paperarena_process_memory_percent",
			Help: "Process share of system memory (0-100)",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paperarena_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

// NewPrometheusMetrics 创建 Prometheus 指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// 交易相关指标记录

// RecordTrade 记录交易尝试
func (pm *PrometheusMetrics) RecordTrade(action, symbol, result string) {
	tradeTotal.WithLabelValues(action, symbol, result).Inc()
}

// RecordTradeVolume 记录成交量
func (pm *PrometheusMetrics) RecordTradeVolume(action, symbol string, volume float64) {
	tradeVolume.WithLabelValues(action, symbol).Add(volume)
}

// RecordRealizedProfit 记录已实现盈亏
func (pm *PrometheusMetrics) RecordRealizedProfit(symbol string, profit float64) {
	tradeRealizedPnl.WithLabelValues(symbol).Add(profit)
}

// 行情相关指标记录

// RecordPriceRequest 记录行情请求
func (pm *PrometheusMetrics) RecordPriceRequest(endpoint, status string, duration time.Duration) {
	priceRequestTotal.WithLabelValues(endpoint, status).Inc()
	priceRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetCurrentPrice 设置当前价格
func (pm *PrometheusMetrics) SetCurrentPrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// AI 相关指标记录

// RecordAIRequest 记录 AI 请求
func (pm *PrometheusMetrics) RecordAIRequest(provider, status string, duration time.Duration) {
	aiRequestTotal.WithLabelValues(provider, status).Inc()
	aiRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// 会话相关指标记录

// SetActiveSessions 设置活跃会话数
func (pm *PrometheusMetrics) SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// 系统相关指标记录

// SetGoroutineCount 设置 Goroutine 数量
func (pm *PrometheusMetrics) SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// SetProcessCPU 设置进程 CPU 占用
func (pm *PrometheusMetrics) SetProcessCPU(percent float64) {
	processCPUPercent.Set(percent)
}

// SetProcessMemory 设置进程内存占用
func (pm *PrometheusMetrics) SetProcessMemory(rssBytes uint64, percent float64) {
	processMemoryBytes.Set(float64(rssBytes))
	processMemoryPercent.Set(percent)
}

// SetMemoryAlloc 设置堆内存分配
func (pm *PrometheusMetrics) SetMemoryAlloc(bytes uint64) {
	memoryAllocBytes.Set(float64(bytes))
}

// 全局实例
var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics 获取全局 Prometheus 指标收集器
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}
