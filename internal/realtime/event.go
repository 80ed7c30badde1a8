// Package realtime broadcasts live-metrics snapshots to local debug
// subscribers. It is a developer aid, not part of the documented
// QuickPulseService protocol: nothing here feeds back into the engine.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a real-time event broadcast to debug subscribers.
type Event struct {
	// Type is the event type (snapshot_posted, subscription_changed,
	// coordinator_state_changed, etc.)
	Type string `json:"type"`

	// ID is a unique event ID (UUID)
	ID string `json:"id"`

	// Data is the event payload (varies by event type)
	Data map[string]interface{} `json:"data"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Source is the engine component the event came from
	Source string `json:"source"`

	// Sequence is a sequence number for event ordering (monotonically increasing)
	Sequence int64 `json:"sequence"`
}

// EventType constants for the debug stream.
const (
	EventTypeSnapshotPosted         = "snapshot_posted"
	EventTypeSubscriptionChanged    = "subscription_changed"
	EventTypeCoordinatorStateChange = "coordinator_state_changed"
	EventTypeDocumentRetained       = "document_retained"
	EventTypeSystemNotification     = "system_notification"
)

// EventSource constants.
const (
	EventSourceCollector   = "collector"
	EventSourceCoordinator = "coordinator"
	EventSourceDataFetcher = "data_fetcher"
	EventSourceDataSender  = "data_sender"
	EventSourceSystem      = "system"
)

// NewEvent creates a new Event with the given type, data, and source.
func NewEvent(eventType string, data map[string]interface{}, source string) *Event {
	return &Event{
		Type:      eventType,
		ID:        generateEventID(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Sequence:  0, // set by EventBus
	}
}

// generateEventID generates a unique event ID (UUID).
func generateEventID() string {
	return uuid.New().String()
}
