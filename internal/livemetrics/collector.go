package livemetrics

import (
	"log/slog"
	"sync"

	"github.com/novaops/livemetrics-agent/internal/livemetrics/metrics"
)

// InstrumentationKeySupplier returns the instrumentation key the Collector
// should currently accept telemetry for. It is polled on every Add so a
// host application may rotate keys without re-enabling the Collector.
type InstrumentationKeySupplier func() string

// FinalCounters is the decoded, point-in-time view returned by Peek and
// GetAndRestart: the counter snapshot plus whatever documents were
// retained and, from GetAndRestart only, the freshly sampled host stats
// (Peek leaves both host fields zero) (spec §4.2, §4.4).
type FinalCounters struct {
	Counters  CounterSnapshot
	Documents []Document

	MemoryCommittedBytes int64
	CPUUsagePercent      float64
}

// Collector ingests telemetry, maintains rolling counters, and retains a
// bounded set of example documents (spec §4.2). It is created disabled;
// Enable arms it with an instrumentation-key supplier. The hot path,
// Add, is wait-free: a small number of CAS retries plus at most one
// document-list append, never an allocation beyond the Document itself,
// never I/O.
type Collector struct {
	logger  *slog.Logger
	host    HostSampler
	metrics *metrics.EngineMetrics

	mu      sync.RWMutex
	enabled bool
	keyFn   InstrumentationKeySupplier

	subscription subscriptionFlag
	counters     Counters
	documents    documentList
}

// NewCollector constructs a disabled Collector. host may be nil, in which
// case GetAndRestart reports zero for both host fields. m may be nil to
// skip internal operational metrics.
func NewCollector(logger *slog.Logger, host HostSampler, m *metrics.EngineMetrics) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger, host: host, metrics: m}
}

// Enable arms the collector with the given key supplier. Re-enabling with
// the same (non-nil) supplier is a no-op; switching suppliers is allowed
// at any time and takes effect on the next Add.
func (c *Collector) Enable(keyFn InstrumentationKeySupplier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = true
	c.keyFn = keyFn
}

// Disable turns the collector off: subsequent Add calls become no-ops and
// Peek/GetAndRestart return ok=false.
func (c *Collector) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	c.keyFn = nil
}

// SetQuickPulseStatus is the Coordinator's single cross-component signal
// (spec §4.2, §4.6). While OFF, Add still runs but neither retains
// documents nor updates counters — the collector continues to accept
// calls cheaply so producer threads never branch on subscription state.
func (c *Collector) SetQuickPulseStatus(state SubscriptionState) {
	c.subscription.set(state)
}

func (c *Collector) isEnabled() (InstrumentationKeySupplier, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keyFn, c.enabled
}

// Add classifies and ingests one telemetry item. Non-blocking, never
// returns an error: malformed or off-key items are dropped silently per
// spec §4.7.
func (c *Collector) Add(item TelemetryItem) {
	keyFn, enabled := c.isEnabled()
	if !enabled || keyFn == nil {
		return
	}
	if item.InstrumentationKey != keyFn() {
		if c.metrics != nil {
			c.metrics.ItemsDroppedTotal.WithLabelValues("key_mismatch").Inc()
		}
		return
	}

	if c.subscription.get() != QPIsOn {
		// Counter aggregation and document retention both require ON;
		// the collector still accepted the call, it just has nothing to
		// do with it (spec §4.2).
		return
	}

	switch item.Kind {
	case KindRequest:
		c.addRequest(item)
		c.observeIngested("request")
	case KindRemoteDependency:
		c.addDependency(item)
		c.observeIngested("dependency")
	case KindException:
		c.addException(item)
		c.observeIngested("exception")
	default:
		// Any other telemetry variant is ignored (spec §3).
		if c.metrics != nil {
			c.metrics.ItemsDroppedTotal.WithLabelValues("unknown_kind").Inc()
		}
	}
}

func (c *Collector) observeIngested(kind string) {
	if c.metrics != nil {
		c.metrics.ItemsIngestedTotal.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) addRequest(item TelemetryItem) {
	durationMs := parseDuration(item.DurationText)
	c.counters.RecordRequest(durationMs, item.Success)

	kept := c.documents.tryAppend(Document{
		Kind:         DocumentKindRequest,
		Name:         item.Name,
		Success:      item.Success,
		DurationMs:   durationMs,
		ResponseCode: item.ResponseCode,
		URL:          item.URL,
		OperationID:  item.OperationID,
		Properties:   item.Properties,
	})
	c.observeDocument(kept)
}

func (c *Collector) addDependency(item TelemetryItem) {
	durationMs := parseDuration(item.DurationText)
	c.counters.RecordDependency(durationMs, item.Success)

	kept := c.documents.tryAppend(Document{
		Kind:        DocumentKindDependency,
		Name:        item.Name,
		Success:     item.Success,
		DurationMs:  durationMs,
		Command:     item.Command,
		ResultCode:  item.ResultCode,
		Target:      item.Target,
		Type:        item.Type,
		OperationID: item.OperationID,
		Properties:  item.Properties,
	})
	c.observeDocument(kept)
}

func (c *Collector) addException(item TelemetryItem) {
	c.counters.RecordException()

	kept := c.documents.tryAppend(Document{
		Kind:           DocumentKindException,
		ExceptionStack: item.ExceptionStack,
		Message:        item.Message,
		ExceptionType:  item.ExceptionType,
		Properties:     item.Properties,
	})
	c.observeDocument(kept)
}

func (c *Collector) observeDocument(kept bool) {
	if c.metrics != nil && !kept {
		c.metrics.DocumentsDropped.Inc()
	}
}

// Peek returns a non-destructive snapshot for debugging/tests. ok is
// false when the collector is disabled.
func (c *Collector) Peek() (FinalCounters, bool) {
	if _, enabled := c.isEnabled(); !enabled {
		return FinalCounters{}, false
	}

	return FinalCounters{
		Counters:  c.counters.Peek(),
		Documents: c.documents.peek(),
	}, true
}

// GetAndRestart atomically snapshots and resets counters and documents,
// then samples host memory and CPU (spec §4.2). ok is false when the
// collector is disabled, in which case the Fetcher must skip its tick.
func (c *Collector) GetAndRestart() (FinalCounters, bool) {
	if _, enabled := c.isEnabled(); !enabled {
		return FinalCounters{}, false
	}

	result := FinalCounters{
		Counters:  c.counters.SnapshotAndReset(),
		Documents: c.documents.snapshotAndReset(),
	}

	if c.host != nil {
		result.MemoryCommittedBytes = c.host.MemoryCommittedBytes()
		result.CPUUsagePercent = c.host.CPUUsagePercent()
	}

	return result, true
}
