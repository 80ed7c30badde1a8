package realtime

import (
	"log/slog"
)

// EventPublisher publishes engine events to the EventBus.
type EventPublisher struct {
	eventBus *DefaultEventBus
	logger   *slog.Logger
	metrics  *RealtimeMetrics
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(eventBus *DefaultEventBus, logger *slog.Logger, metrics *RealtimeMetrics) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		eventBus: eventBus,
		logger:   logger.With("component", "event_publisher"),
		metrics:  metrics,
	}
}

// SnapshotSummary is the data published whenever the Data Fetcher ticks
// (a distilled view of FinalCounters — counts and totals only, not the
// full document list, to keep the debug stream light).
type SnapshotSummary struct {
	Requests             uint64
	UnsuccessfulRequests uint64
	Rdds                 uint64
	UnsuccessfulRdds     uint64
	Exceptions           uint64
	DocumentCount        int
	MemoryCommittedBytes int64
	CPUUsagePercent      float64
}

// PublishSnapshot publishes a posted snapshot event.
func (p *EventPublisher) PublishSnapshot(summary SnapshotSummary) error {
	if p.eventBus == nil {
		return nil
	}

	data := map[string]interface{}{
		"requests":               summary.Requests,
		"unsuccessful_requests":  summary.UnsuccessfulRequests,
		"rdds":                   summary.Rdds,
		"unsuccessful_rdds":      summary.UnsuccessfulRdds,
		"exceptions":             summary.Exceptions,
		"document_count":         summary.DocumentCount,
		"memory_committed_bytes": summary.MemoryCommittedBytes,
		"cpu_usage_percent":      summary.CPUUsagePercent,
	}

	event := NewEvent(EventTypeSnapshotPosted, data, EventSourceDataFetcher)
	return p.eventBus.Publish(*event)
}

// PublishSubscriptionChanged publishes a QuickPulse subscription
// transition (QP_IS_ON / QP_IS_OFF).
func (p *EventPublisher) PublishSubscriptionChanged(subscribed bool) error {
	if p.eventBus == nil {
		return nil
	}

	data := map[string]interface{}{"subscribed": subscribed}
	event := NewEvent(EventTypeSubscriptionChanged, data, EventSourceCollector)
	return p.eventBus.Publish(*event)
}

// PublishCoordinatorStateChange publishes a Coordinator state transition.
func (p *EventPublisher) PublishCoordinatorStateChange(from, to string) error {
	if p.eventBus == nil {
		return nil
	}

	data := map[string]interface{}{"from": from, "to": to}
	event := NewEvent(EventTypeCoordinatorStateChange, data, EventSourceCoordinator)
	return p.eventBus.Publish(*event)
}

// PublishSystemNotification publishes a system notification event.
func (p *EventPublisher) PublishSystemNotification(level string, message string) error {
	if p.eventBus == nil {
		return nil
	}

	data := map[string]interface{}{
		"level":   level,
		"message": message,
	}

	event := NewEvent(EventTypeSystemNotification, data, EventSourceSystem)
	return p.eventBus.Publish(*event)
}
