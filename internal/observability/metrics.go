package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoutbox_websocket_connections_active",
			Help: "Current number of active shoutbox WebSocket connections",
		},
	)

	ChatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoutbox_chat_events_total",
			Help: "Accepted chat events by type and origin",
		},
		[]string{"type", "origin"},
	)

	ChatRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoutbox_chat_rejections_total",
			Help: "Rejected chat actions by reason code",
		},
		[]string{"reason"},
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoutbox_broadcast_fanout_sessions",
			Help:    "Number of sessions a single broadcast was delivered to",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	SendQueueOverflowTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoutbox_send_queue_overflow_total",
			Help: "Connections closed because their send queue was full",
		},
	)

	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoutbox_history_writes_total",
			Help: "History store writes by operation and result",
		},
		[]string{"op", "result"},
	)

	HistoryWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoutbox_history_writes_dropped_total",
			Help: "History writes dropped because the write queue was full or closed",
		},
	)

	HistoryWriteLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoutbox_history_write_latency_seconds",
			Help:    "Latency between broadcast and durable history write",
			Buckets: prometheus.DefBuckets,
		},
	)

	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoutbox_relay_events_total",
			Help: "Cross-instance relay events by direction and result",
		},
		[]string{"direction", "result"},
	)
)
