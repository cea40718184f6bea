// Package metrics exposes Prometheus instrumentation for the agents.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AgentRequests counts requests handled per agent and operation.
	AgentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sfi_agent_requests_total",
		Help: "Number of requests handled, by agent and operation.",
	}, []string{"agent", "operation"})

	// Broadcasts counts messages fanned out to subscribers per agent.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sfi_agent_broadcasts_total",
		Help: "Number of broadcasts sent to subscribers, by agent.",
	}, []string{"agent"})

	// PersistWrites counts snapshot writes to the durable store.
	PersistWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfi_store_persist_writes_total",
		Help: "Number of inventory snapshot writes to durable storage.",
	})

	// AuthTransitions counts authentication state transitions by phase.
	AuthTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sfi_auth_transitions_total",
		Help: "Number of authentication state transitions, by resulting phase.",
	}, []string{"phase"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
