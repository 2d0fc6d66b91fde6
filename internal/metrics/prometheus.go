package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_turns_total",
			Help: "Total number of reasoning turns",
		},
		[]string{"status"}, // status: done|MaxIterationsExceeded|NoProgress|ProviderFailed|Canceled
	)

	TurnIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcaadvisor_turn_iterations",
			Help:    "Provider cycles used per turn",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 16},
		},
		[]string{"status"},
	)

	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcaadvisor_turn_duration_seconds",
			Help:    "Wall time of a reasoning turn",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"status"},
	)

	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_state_transitions_total",
			Help: "Reasoning loop state transitions",
		},
		[]string{"from", "to"},
	)

	// Provider metrics
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_provider_calls_total",
			Help: "Total number of model provider calls",
		},
		[]string{"provider", "status"}, // status: success or an error reason
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcaadvisor_provider_latency_seconds",
			Help:    "Model provider latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success or an error reason
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcaadvisor_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	// Price source metrics
	PriceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_price_requests_total",
			Help: "Total number of price source requests",
		},
		[]string{"source", "operation", "status"}, // operation: price|history
	)

	PriceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcaadvisor_price_latency_seconds",
			Help:    "Price source latency in seconds",
			Buckets: []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"source", "operation"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_cache_lookups_total",
			Help: "Quote and history cache lookups",
		},
		[]string{"kind", "result"}, // result: hit|miss|error
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaadvisor_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)

	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dcaadvisor_websocket_connections",
			Help: "Current number of open chat WebSocket connections",
		},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			Turns, TurnIterations, TurnDuration, StateTransitions,
			ProviderCalls, ProviderLatency,
			ToolExecutions, ToolLatency,
			PriceRequests, PriceLatency, CacheLookups,
			KafkaMessages, WebSocketConnections,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(reason string) string {
	if reason == "" {
		return "success"
	}
	return reason
}

// RecordTurn records a finished turn; reason is empty on success
func RecordTurn(reason string, iterations int, duration time.Duration) {
	s := status(reason)
	if reason == "" {
		s = "done"
	}
	Turns.WithLabelValues(s).Inc()
	TurnIterations.WithLabelValues(s).Observe(float64(iterations))
	TurnDuration.WithLabelValues(s).Observe(duration.Seconds())
}

// RecordTransition records one reasoning loop state change
func RecordTransition(from, to string) {
	StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordProviderCall records a model provider invocation; reason is empty on success
func RecordProviderCall(provider string, latency time.Duration, reason string) {
	ProviderCalls.WithLabelValues(provider, status(reason)).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordToolExecution records a tool execution; reason is empty on success
func RecordToolExecution(tool string, latency time.Duration, reason string) {
	ToolExecutions.WithLabelValues(tool, status(reason)).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordPriceRequest records a price source call; reason is empty on success
func RecordPriceRequest(source, operation string, latency time.Duration, reason string) {
	PriceRequests.WithLabelValues(source, operation, status(reason)).Inc()
	PriceLatency.WithLabelValues(source, operation).Observe(latency.Seconds())
}

// RecordCacheLookup records a cache hit, miss or error
func RecordCacheLookup(kind, result string) {
	CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordKafkaMessage records a produced message
func RecordKafkaMessage(topic string, err error) {
	s := "success"
	if err != nil {
		s = "error"
	}
	KafkaMessages.WithLabelValues(topic, s).Inc()
}
