package livemetrics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/novaops/livemetrics-agent/internal/livemetrics/metrics"
	"github.com/novaops/livemetrics-agent/internal/realtime"
)

// sendQueueCapacity bounds the Data Fetcher -> Data Sender channel
// (spec §4.4): a misbehaving or saturated Sender must never make the
// Fetcher block, so the channel is buffered and a full channel sheds
// the payload rather than waiting.
const sendQueueCapacity = 256

// PostRequest is one enqueued unit of work: the fully-built wire payload
// plus the headers the Sender must attach at transport time.
type PostRequest struct {
	Envelopes []PostEnvelope
	Headers   RequestHeaders
}

// DataFetcher snapshots the Collector on a fast cadence, builds the wire
// payload, and enqueues it onto a bounded send queue (spec §4.4). It
// never blocks: a full queue drops the payload with a warning.
type DataFetcher struct {
	collector *Collector
	logger    *slog.Logger
	queue     chan PostRequest
	metrics   *metrics.EngineMetrics

	// limiter defends against a misconfigured (too-small) post interval
	// driving Fetcher ticks faster than anything downstream can use;
	// the bounded queue already sheds excess payloads, this simply caps
	// how often the Fetcher even tries to build one.
	limiter *rate.Limiter

	// publisher mirrors each tick's snapshot onto the local debug event
	// bus, if one is wired up. Nil-safe: a nil publisher just means no
	// debug stream consumer can see this agent's traffic.
	publisher *realtime.EventPublisher

	instrumentationKey InstrumentationKeySupplier
	machineName        string
	instanceName       string
	roleName           string
	agentVersion       string

	lastTick time.Time
}

// NewDataFetcher constructs a Data Fetcher. maxTicksPerSecond bounds the
// defensive rate limiter; 0 disables limiting. publisher may be nil.
func NewDataFetcher(collector *Collector, logger *slog.Logger, m *metrics.EngineMetrics, publisher *realtime.EventPublisher, keyFn InstrumentationKeySupplier, machineName, instanceName, roleName, agentVersion string, maxTicksPerSecond float64) *DataFetcher {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if maxTicksPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxTicksPerSecond), 1)
	}

	return &DataFetcher{
		collector:          collector,
		logger:             logger,
		queue:              make(chan PostRequest, sendQueueCapacity),
		metrics:            m,
		limiter:            limiter,
		publisher:          publisher,
		instrumentationKey: keyFn,
		machineName:        machineName,
		instanceName:       instanceName,
		roleName:           roleName,
		agentVersion:       agentVersion,
	}
}

// Queue exposes the bounded send queue for the Data Sender to drain.
func (f *DataFetcher) Queue() <-chan PostRequest {
	return f.queue
}

// Tick snapshots the collector, builds one post payload, and offers it
// to the queue. Returns false when the collector was disabled (the
// Coordinator should skip this tick's bookkeeping), when the limiter
// rejected the tick, or when the queue was full and the payload was
// dropped.
func (f *DataFetcher) Tick(ctx context.Context, now time.Time, streamID string) bool {
	if f.limiter != nil && !f.limiter.Allow() {
		return false
	}

	snapshot, ok := f.collector.GetAndRestart()
	if !ok {
		return false
	}

	windowSeconds := 1.0
	if !f.lastTick.IsZero() {
		windowSeconds = now.Sub(f.lastTick).Seconds()
	}
	f.lastTick = now

	docs := make([]DocumentDTO, 0, len(snapshot.Documents))
	for _, d := range snapshot.Documents {
		docs = append(docs, documentDTO(d))
	}
	var docsOut []DocumentDTO
	if len(docs) > 0 {
		docsOut = docs
	}

	if f.publisher != nil {
		if err := f.publisher.PublishSnapshot(realtime.SnapshotSummary{
			Requests:             snapshot.Counters.Requests,
			UnsuccessfulRequests: snapshot.Counters.UnsuccessfulRequests,
			Rdds:                 snapshot.Counters.Rdds,
			UnsuccessfulRdds:     snapshot.Counters.UnsuccessfulRdds,
			Exceptions:           snapshot.Counters.Exceptions,
			DocumentCount:        len(snapshot.Documents),
			MemoryCommittedBytes: snapshot.MemoryCommittedBytes,
			CPUUsagePercent:      snapshot.CPUUsagePercent,
		}); err != nil {
			f.logger.Debug("failed to publish debug snapshot", "error", err)
		}
	}

	envelope := PostEnvelope{
		Documents:          docsOut,
		InstrumentationKey: f.instrumentationKey(),
		Metrics:            buildMetrics(snapshot.Counters, windowSeconds, snapshot.MemoryCommittedBytes, snapshot.CPUUsagePercent),
		InvariantVersion:   1,
		Timestamp:          dotNetDate(now.UnixMilli()),
		Version:            f.agentVersion,
		StreamID:           nil, // always null on posts (spec §4.4)
		MachineName:        f.machineName,
		Instance:           f.instanceName,
	}
	if f.roleName != "" {
		envelope.RoleName = &f.roleName
	}

	req := PostRequest{
		Envelopes: []PostEnvelope{envelope},
		Headers: RequestHeaders{
			TransmissionTime: now.UnixMilli(),
			StreamID:         streamID,
			MachineName:      f.machineName,
			InstanceName:     f.instanceName,
			RoleName:         f.roleName,
		},
	}

	select {
	case f.queue <- req:
		if f.metrics != nil {
			f.metrics.SendQueueDepth.Set(float64(len(f.queue)))
		}
		return true
	default:
		f.logger.Warn("send queue full, dropping payload")
		if f.metrics != nil {
			f.metrics.SendQueueDropped.Inc()
		}
		return false
	}
}
