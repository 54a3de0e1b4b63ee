// Package metrics provides Prometheus instrumentation for the CloudChat
// server. It exposes gauges for population counts, counters for message and
// match throughput, and a histogram for command handling latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cloudchat_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineUsers tracks the current number of users in the presence registry.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cloudchat_online_users",
		Help: "Current number of online users",
	})

	// WaitingUsers tracks the current size of the waiting pool.
	WaitingUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cloudchat_waiting_users",
		Help: "Current number of users waiting for a partner",
	})

	// ActiveSessions tracks the current number of chat sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cloudchat_active_sessions",
		Help: "Current number of active chat sessions",
	})

	// MessagesTotal counts processed messages, labeled by kind: "text",
	// "media" or "rejected".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudchat_messages_total",
		Help: "Total number of messages processed",
	}, []string{"kind"})

	// MatchesTotal counts sessions created, labeled by origin: "immediate"
	// (at claim or find time) or "background" (matchmaking pass).
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudchat_matches_total",
		Help: "Total number of sessions created by matchmaking",
	}, []string{"origin"})

	// CommandLatency records command handling latency in seconds.
	CommandLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloudchat_command_latency_seconds",
		Help:    "Command handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		OnlineUsers,
		WaitingUsers,
		ActiveSessions,
		MessagesTotal,
		MatchesTotal,
		CommandLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
