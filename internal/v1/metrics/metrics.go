package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the town service.
//
// Naming convention: namespace_subsystem_name
// - namespace: townsquare (application-level grouping)
// - subsystem: websocket, town, video_token (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, towns, players)
// - Counter: Cumulative events (messages processed, errors)

var (
	// ActiveWebSocketConnections tracks the current number of subscribed sockets (Gauge - current state)
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "townsquare",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveTowns tracks the current number of registered towns (Gauge - current state)
	ActiveTowns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "townsquare",
		Subsystem: "town",
		Name:      "towns_active",
		Help:      "Current number of registered towns",
	})

	// TownPlayers tracks the number of players in each town (GaugeVec with town_id label)
	TownPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "townsquare",
		Subsystem: "town",
		Name:      "players_count",
		Help:      "Number of players in each town",
	}, []string{"town_id"})

	// ConversationAreas tracks the number of live conversation areas per town (GaugeVec)
	ConversationAreas = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "townsquare",
		Subsystem: "town",
		Name:      "conversation_areas_active",
		Help:      "Number of live conversation areas in each town",
	}, []string{"town_id"})

	// WebsocketEvents tracks the total number of socket events relayed (CounterVec - cumulative)
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "townsquare",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// ListenerFailures counts listener callbacks that panicked during dispatch
	ListenerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "townsquare",
		Subsystem: "town",
		Name:      "listener_failures_total",
		Help:      "Total listener callbacks that panicked during event dispatch",
	})

	// VideoTokenRequests tracks token mint attempts against the provider (CounterVec)
	VideoTokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "townsquare",
		Subsystem: "video_token",
		Name:      "requests_total",
		Help:      "Total video token mint attempts",
	}, []string{"mode", "status"})

	// CircuitBreakerState tracks the current state of the token-provider breaker (GaugeVec)
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "townsquare",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by the circuit breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "townsquare",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "townsquare",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "townsquare",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
