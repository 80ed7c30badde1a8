// Package metrics provides the agent's own internal operational metrics —
// distinct from the live-metrics telemetry the engine ships to the remote
// service. These are exposed for the host's own Prometheus scrape, not
// part of the documented QuickPulseService protocol.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the agent's internal Prometheus metrics, lazily
// initialized and safe for concurrent use.
type Registry struct {
	namespace string

	engine     *EngineMetrics
	engineOnce sync.Once
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton Registry under the
// "livemetrics_agent" namespace.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry("livemetrics_agent")
	})
	return defaultRegistry
}

// NewRegistry creates a Registry under the given namespace.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "livemetrics_agent"
	}
	return &Registry{namespace: namespace}
}

// Engine returns the EngineMetrics manager, lazily initialized.
func (r *Registry) Engine() *EngineMetrics {
	r.engineOnce.Do(func() {
		r.engine = newEngineMetrics(r.namespace)
	})
	return r.engine
}

// EngineMetrics tracks the four-component engine's own operational
// health: items ingested/dropped, documents retained/dropped, queue
// depth, coordinator state, and ping/post outcomes.
type EngineMetrics struct {
	ItemsIngestedTotal *prometheus.CounterVec
	ItemsDroppedTotal  *prometheus.CounterVec
	DocumentsDropped   prometheus.Counter
	SendQueueDepth     prometheus.Gauge
	SendQueueDropped   prometheus.Counter
	CoordinatorState   prometheus.Gauge
	PingOutcomesTotal  *prometheus.CounterVec
	PostOutcomesTotal  *prometheus.CounterVec
}

func newEngineMetrics(namespace string) *EngineMetrics {
	const subsystem = "engine"

	return &EngineMetrics{
		ItemsIngestedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "items_ingested_total",
				Help:      "Telemetry items accepted by the Collector, by kind.",
			},
			[]string{"kind"},
		),
		ItemsDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "items_dropped_total",
				Help:      "Telemetry items dropped by the Collector, by reason.",
			},
			[]string{"reason"},
		),
		DocumentsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "documents_dropped_total",
				Help:      "Documents dropped because the per-window retention budget was reached.",
			},
		),
		SendQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "send_queue_depth",
				Help:      "Current number of payloads buffered in the Fetcher-to-Sender queue.",
			},
		),
		SendQueueDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "send_queue_dropped_total",
				Help:      "Payloads dropped because the send queue was full.",
			},
		),
		CoordinatorState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "coordinator_state",
				Help:      "Current Coordinator state: 0=PING, 1=POST, 2=ERROR_BACKOFF.",
			},
		),
		PingOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ping_outcomes_total",
				Help:      "Ping Sender outcomes by subscribed state.",
			},
			[]string{"subscribed"},
		),
		PostOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "post_outcomes_total",
				Help:      "Data Sender outcomes by subscribed state.",
			},
			[]string{"subscribed"},
		),
	}
}
