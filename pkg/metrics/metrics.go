// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "nut_chat"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 业务指标 - 提示词生成
	PromptGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "generation_total",
			Help:      "Total number of prompt generations",
		},
		[]string{"provider_category", "verbosity"},
	)

	PromptGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "generation_duration_seconds",
			Help:      "Prompt generation duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"provider_category"},
	)

	PromptEstimatedTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "estimated_tokens",
			Help:      "Estimated token count of generated prompts",
			Buckets:   []float64{500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
		[]string{"verbosity"},
	)

	PromptBudgetRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "budget_rebuild_total",
			Help:      "Prompt rebuilds triggered by token budget overflow",
		},
		[]string{"from_verbosity", "to_verbosity"},
	)

	// 业务指标 - 消息分发
	ChatDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "dispatch_total",
			Help:      "Total number of dispatched chat turns",
		},
		[]string{"mode", "status"},
	)

	ChatDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "dispatch_duration_seconds",
			Help:      "Chat turn dispatch duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	ChatResponsesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "responses_delivered_total",
			Help:      "Chat responses delivered to callers",
		},
		[]string{"path"}, // path: stream/poll
	)

	ChatResponsesDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "responses_deduped_total",
			Help:      "Duplicate chat responses suppressed by the deduper",
		},
	)

	ChatFirstResponseTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "first_response_timeout_total",
			Help:      "Sends with no response part before the watchdog fired",
		},
	)

	ActiveChatSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_sessions",
			Help:      "Current number of active chat sessions",
		},
	)

	// Nut 后端 RPC 指标
	NutRPCTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nut",
			Name:      "rpc_total",
			Help:      "Total number of nut backend RPC calls",
		},
		[]string{"method", "status"},
	)

	NutRPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "nut",
			Name:      "rpc_duration_seconds",
			Help:      "Nut backend RPC duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	NutStreamLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nut",
			Name:      "stream_lines_total",
			Help:      "NDJSON stream lines read from the nut backend",
		},
		[]string{"method", "status"}, // status: ok/malformed
	)

	// 队列指标
	TelemetryEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "events_published_total",
			Help:      "Telemetry events published to the Redis stream",
		},
		[]string{"event", "status"},
	)

	TelemetryEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "events_processed_total",
			Help:      "Telemetry events processed by the worker",
		},
		[]string{"event", "status"},
	)
)
