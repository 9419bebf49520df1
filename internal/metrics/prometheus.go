package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipsmoke_http_requests_total",
			Help: "HTTP 请求总数",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vipsmoke_http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 120},
		},
		[]string{"method", "endpoint", "status"},
	)

	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipsmoke_sync_runs_total",
			Help: "同步运行次数",
		},
		[]string{"resource", "mode", "result"},
	)
	syncItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipsmoke_sync_items_total",
			Help: "同步处理的记录数",
		},
		[]string{"resource", "outcome"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vipsmoke_sync_duration_seconds",
			Help:    "单次同步耗时",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
		},
		[]string{"resource"},
	)
	lastSuccessTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vipsmoke_sync_last_success_timestamp_seconds",
			Help: "最近一次成功同步的时间",
		},
		[]string{"resource"},
	)

	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipsmoke_classifications_total",
			Help: "合规分类次数 (按来源)",
		},
		[]string{"source"},
	)
	aiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipsmoke_ai_calls_total",
			Help: "LLM 调用次数",
		},
		[]string{"call_type", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		syncRunsTotal,
		syncItemsTotal,
		syncDuration,
		lastSuccessTimestamp,
		classificationsTotal,
		aiCallsTotal,
	)
}

// RecordRequest 记录 HTTP 请求
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// SyncCounts 同步计数快照
type SyncCounts struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

// RecordSync 记录一次同步运行
func RecordSync(resource, mode string, success bool, counts SyncCounts, duration time.Duration) {
	result := "success"
	if !success {
		result = "failed"
	}
	syncRunsTotal.WithLabelValues(resource, mode, result).Inc()
	syncItemsTotal.WithLabelValues(resource, "created").Add(float64(counts.Created))
	syncItemsTotal.WithLabelValues(resource, "updated").Add(float64(counts.Updated))
	syncItemsTotal.WithLabelValues(resource, "skipped").Add(float64(counts.Skipped))
	syncItemsTotal.WithLabelValues(resource, "failed").Add(float64(counts.Failed))
	syncDuration.WithLabelValues(resource).Observe(duration.Seconds())
	if success {
		lastSuccessTimestamp.WithLabelValues(resource).SetToCurrentTime()
	}
}

// RecordClassification 记录分类来源 (ai / keyword)
func RecordClassification(source string) {
	classificationsTotal.WithLabelValues(source).Inc()
}

// RecordAICall 记录 LLM 调用
func RecordAICall(callType string, ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	aiCallsTotal.WithLabelValues(callType, status).Inc()
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler Prometheus 导出端点
func Handler() http.Handler {
	return promhttp.Handler()
}
