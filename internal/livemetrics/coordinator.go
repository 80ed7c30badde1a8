package livemetrics

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novaops/livemetrics-agent/internal/livemetrics/metrics"
	"github.com/novaops/livemetrics-agent/internal/realtime"
)

// CoordinatorState is one of the three Coordinator states (spec §4.6).
type CoordinatorState int

const (
	StatePing CoordinatorState = iota
	StatePost
	StateErrorBackoff
)

func (s CoordinatorState) String() string {
	switch s {
	case StatePing:
		return "PING"
	case StatePost:
		return "POST"
	case StateErrorBackoff:
		return "ERROR_BACKOFF"
	default:
		return "UNKNOWN"
	}
}

// consecutiveFailuresToBackoff is the number of consecutive failed POST
// cycles that promotes the state machine to ERROR_BACKOFF (spec §4.6).
const consecutiveFailuresToBackoff = 5

// CoordinatorConfig holds the tunable defaults spec §4.6 calls out, all
// overridable for tests.
type CoordinatorConfig struct {
	PingInterval time.Duration
	PostInterval time.Duration
	WaitOnError  time.Duration
	Endpoint     string
	StreamID     string
}

// DefaultCoordinatorConfig returns spec §4.6's documented defaults, with
// a fresh random stream id (hex of a UUID with dashes stripped).
func DefaultCoordinatorConfig(endpoint string) CoordinatorConfig {
	return CoordinatorConfig{
		PingInterval: 5 * time.Second,
		PostInterval: 1 * time.Second,
		WaitOnError:  10 * time.Second,
		Endpoint:     endpoint,
		StreamID:     newStreamID(),
	}
}

// Coordinator is the PING/POST/ERROR_BACKOFF state machine driving the
// Ping Sender, Data Fetcher, and Data Sender (spec §4.6). It owns a
// single long-lived task; setQuickPulseStatus on the Collector is the
// only cross-component signal it emits.
type Coordinator struct {
	cfg       CoordinatorConfig
	collector *Collector
	pinger    *PingSender
	fetcher   *DataFetcher
	sender    *DataSender
	logger    *slog.Logger
	metrics   *metrics.EngineMetrics

	// now is the clock that stamps pings and Fetcher ticks; it is
	// time.Now unless replaced.
	now func() time.Time

	// publisher mirrors subscription and state transitions onto the
	// local debug event bus, if one is wired up. Nil-safe.
	publisher *realtime.EventPublisher

	mu                sync.Mutex
	state             CoordinatorState
	endpoint          string
	etag              string
	subscribed        bool
	consecutiveErrors int
}

// NewCoordinator wires the four components together. m and publisher may
// be nil to skip internal operational metrics and debug-stream events
// respectively.
func NewCoordinator(cfg CoordinatorConfig, collector *Collector, pinger *PingSender, fetcher *DataFetcher, sender *DataSender, logger *slog.Logger, m *metrics.EngineMetrics, publisher *realtime.EventPublisher) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StreamID == "" {
		cfg.StreamID = newStreamID()
	}
	return &Coordinator{
		cfg:       cfg,
		collector: collector,
		pinger:    pinger,
		fetcher:   fetcher,
		sender:    sender,
		logger:    logger,
		metrics:   m,
		publisher: publisher,
		now:       time.Now,
		state:     StatePing,
		endpoint:  cfg.Endpoint,
	}
}

// State returns the current state under lock, for tests/introspection.
func (c *Coordinator) State() CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentEndpoint returns the endpoint posts should currently target,
// honoring any sticky redirect a ping response issued (spec §4.3,
// x-ms-qps-service-endpoint-redirect-v2). The Data Sender polls this
// instead of a fixed endpoint so a mid-session redirect applies to both
// ping and post traffic.
func (c *Coordinator) CurrentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Run drives the state machine until ctx is cancelled (spec §4.7:
// shutdown is cooperative — cancelling ctx terminates the pipeline).
func (c *Coordinator) Run(ctx context.Context) {
	for {
		delay := c.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// tick performs exactly one state-dependent action and returns the delay
// to sleep before the next tick.
func (c *Coordinator) tick(ctx context.Context) time.Duration {
	c.mu.Lock()
	state := c.state
	endpoint := c.endpoint
	etag := c.etag
	c.mu.Unlock()

	switch state {
	case StatePing:
		return c.tickPing(ctx, endpoint, etag)
	case StatePost:
		return c.tickPost(ctx, endpoint)
	case StateErrorBackoff:
		return c.tickErrorBackoff()
	default:
		c.logger.Error("coordinator in unknown state, resetting to PING", "state", int(state))
		c.setState(StatePing)
		return c.cfg.PingInterval
	}
}

func (c *Coordinator) tickPing(ctx context.Context, endpoint, etag string) time.Duration {
	result := c.pinger.Ping(ctx, endpoint, c.now().UnixMilli(), etag)
	c.setSubscription(result.Subscribed)
	if c.metrics != nil {
		c.metrics.PingOutcomesTotal.WithLabelValues(strconv.FormatBool(result.Subscribed)).Inc()
	}

	c.mu.Lock()
	if result.HasRedirect {
		c.endpoint = result.RedirectURL
	}
	if result.ETag != "" {
		c.etag = result.ETag
	}
	c.mu.Unlock()

	if result.Subscribed {
		c.logger.Info("quick pulse subscribed, entering POST state")
		c.setState(StatePost)
		return c.cfg.PostInterval
	}

	if result.HasDelay {
		return time.Duration(result.NextDelayMs) * time.Millisecond
	}
	return c.cfg.PingInterval
}

func (c *Coordinator) tickPost(ctx context.Context, endpoint string) time.Duration {
	c.fetcher.Tick(ctx, c.now(), c.cfg.StreamID)

	var result PostResult
	select {
	case result = <-c.sender.Results():
	default:
		// No Sender result yet this tick; treat as still-subscribed and
		// keep posting — the Sender publishes asynchronously and may
		// simply not have completed a round trip since the last tick.
		return c.cfg.PostInterval
	}

	if result.Subscribed {
		c.resetErrors()
		if result.HasDelay {
			return time.Duration(result.NextDelayMs) * time.Millisecond
		}
		return c.cfg.PostInterval
	}

	failures := c.recordError()
	if failures >= consecutiveFailuresToBackoff {
		c.logger.Warn("too many consecutive post failures, entering ERROR_BACKOFF", "failures", failures)
		c.setSubscription(false)
		c.setState(StateErrorBackoff)
		return c.cfg.WaitOnError
	}

	c.setSubscription(false)
	c.setState(StatePing)
	return c.cfg.PingInterval
}

func (c *Coordinator) tickErrorBackoff() time.Duration {
	c.resetErrors()
	c.setState(StatePing)
	return c.cfg.PingInterval
}

func (c *Coordinator) setState(s CoordinatorState) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CoordinatorState.Set(float64(s))
	}

	if c.publisher != nil && from != s {
		if err := c.publisher.PublishCoordinatorStateChange(from.String(), s.String()); err != nil {
			c.logger.Debug("failed to publish coordinator state change", "error", err)
		}
	}
}

// setSubscription updates the Collector's subscription flag and mirrors
// the transition onto the debug event bus, but only when the value
// actually changes (a ping or post tick may reaffirm the same
// subscription state every cycle).
func (c *Coordinator) setSubscription(subscribed bool) {
	c.mu.Lock()
	changed := c.subscribed != subscribed
	c.subscribed = subscribed
	c.mu.Unlock()

	c.collector.SetQuickPulseStatus(subscriptionFromBool(subscribed))

	if changed && c.publisher != nil {
		if err := c.publisher.PublishSubscriptionChanged(subscribed); err != nil {
			c.logger.Debug("failed to publish subscription change", "error", err)
		}
	}
}

func (c *Coordinator) recordError() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors++
	return c.consecutiveErrors
}

func (c *Coordinator) resetErrors() {
	c.mu.Lock()
	c.consecutiveErrors = 0
	c.mu.Unlock()
}

func subscriptionFromBool(subscribed bool) SubscriptionState {
	if subscribed {
		return QPIsOn
	}
	return QPIsOff
}

// newStreamID returns the hex of a random UUID with dashes stripped, the
// stream identifier format spec §4.6 documents.
func newStreamID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
