package livemetrics

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/novaops/livemetrics-agent/internal/livemetrics/metrics"
)

// PostResult is what one post round trip resolves to (spec §4.5).
type PostResult struct {
	Subscribed  bool
	NextDelayMs int64
	HasDelay    bool
}

// DataSender is the single-consumer loop draining the Data Fetcher's
// queue to the HTTP transport (spec §4.5). It runs independently of the
// Coordinator's tick cadence so a slow network cannot stall ingestion
// or the Fetcher.
type DataSender struct {
	transport Transport
	logger    *slog.Logger
	results   chan PostResult
	metrics   *metrics.EngineMetrics

	instrumentationKey InstrumentationKeySupplier
}

// NewDataSender constructs a Data Sender. results is buffered with
// capacity 1 so the Coordinator always observes only the latest status;
// older unread results are intentionally overwritten, never queued.
func NewDataSender(transport Transport, logger *slog.Logger, m *metrics.EngineMetrics, keyFn InstrumentationKeySupplier) *DataSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataSender{
		transport:          transport,
		logger:             logger,
		results:            make(chan PostResult, 1),
		metrics:            m,
		instrumentationKey: keyFn,
	}
}

// Results exposes the latest-status channel for the Coordinator to read.
func (s *DataSender) Results() <-chan PostResult {
	return s.results
}

// EndpointSupplier returns the endpoint the Sender should target for its
// next post. The Coordinator owns the effective endpoint (it may have
// been overridden by a ping redirect, spec §4.3) and is the usual
// implementation, the same supplier-function pattern as
// InstrumentationKeySupplier.
type EndpointSupplier func() string

// Run drains queue until ctx is cancelled, dispatching each request and
// publishing a PostResult. endpointFn is polled on every post rather than
// captured once, so a mid-session endpoint redirect the Coordinator
// observes on a ping also takes effect on posts. Intended to be launched
// once as its own goroutine for the engine's lifetime.
func (s *DataSender) Run(ctx context.Context, endpointFn EndpointSupplier, queue <-chan PostRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-queue:
			if !ok {
				return
			}
			s.publish(s.send(ctx, endpointFn(), req))
		}
	}
}

func (s *DataSender) send(ctx context.Context, endpoint string, req PostRequest) PostResult {
	resp, err := s.transport.Post(ctx, endpoint, s.instrumentationKey(), req.Envelopes, req.Headers)
	if err != nil {
		s.logger.Warn("post failed", "error", err, "endpoint", endpoint)
		s.observeOutcome(false)
		return PostResult{Subscribed: false}
	}

	result := PostResult{Subscribed: resp.Subscribed}
	if resp.HasPollingIntervalHint {
		result.NextDelayMs = resp.PollingIntervalHintMs
		result.HasDelay = true
	}
	s.observeOutcome(result.Subscribed)
	return result
}

func (s *DataSender) observeOutcome(subscribed bool) {
	if s.metrics != nil {
		s.metrics.PostOutcomesTotal.WithLabelValues(strconv.FormatBool(subscribed)).Inc()
	}
}

// publish overwrites any unread prior result so the Coordinator only
// ever sees the most recent post outcome.
func (s *DataSender) publish(result PostResult) {
	select {
	case s.results <- result:
	default:
		select {
		case <-s.results:
		default:
		}
		select {
		case s.results <- result:
		default:
		}
	}
}
