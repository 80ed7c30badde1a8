package livemetrics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaops/livemetrics-agent/internal/realtime"
)

// capturingSubscriber records every event broadcast to it, for asserting
// that the engine actually feeds the debug event bus.
type capturingSubscriber struct {
	id     string
	ctx    context.Context
	events chan realtime.Event
}

func newCapturingSubscriber(id string) *capturingSubscriber {
	return &capturingSubscriber{id: id, ctx: context.Background(), events: make(chan realtime.Event, 16)}
}

func (s *capturingSubscriber) ID() string               { return s.id }
func (s *capturingSubscriber) Context() context.Context { return s.ctx }
func (s *capturingSubscriber) Close() error             { return nil }

func (s *capturingSubscriber) Send(event realtime.Event) error {
	s.events <- event
	return nil
}

func TestDataFetcher_TickSkipsWhenCollectorDisabled(t *testing.T) {
	collector := NewCollector(nil, nil, nil)
	fetcher := NewDataFetcher(collector, nil, nil, nil, func() string { return "ikey" }, "host", "instance", "role", "1.0", 0)

	ok := fetcher.Tick(context.Background(), time.Now(), "stream-1")
	assert.False(t, ok)
}

func TestDataFetcher_TickEnqueuesPayload(t *testing.T) {
	collector := NewCollector(nil, nil, nil)
	collector.Enable(func() string { return "ikey" })
	collector.SetQuickPulseStatus(QPIsOn)
	collector.Add(TelemetryItem{Kind: KindRequest, InstrumentationKey: "ikey", Name: "op", Success: true})

	fetcher := NewDataFetcher(collector, nil, nil, nil, func() string { return "ikey" }, "host", "instance", "role", "1.0", 0)

	ok := fetcher.Tick(context.Background(), time.Now(), "stream-1")
	require.True(t, ok)

	req := <-fetcher.Queue()
	require.Len(t, req.Envelopes, 1)
	assert.Equal(t, "ikey", req.Envelopes[0].InstrumentationKey)
	assert.Nil(t, req.Envelopes[0].StreamID)
	assert.Equal(t, "stream-1", req.Headers.StreamID)
}

func TestDataFetcher_TickDropsWhenQueueFull(t *testing.T) {
	collector := NewCollector(nil, nil, nil)
	collector.Enable(func() string { return "ikey" })
	collector.SetQuickPulseStatus(QPIsOn)

	fetcher := NewDataFetcher(collector, nil, nil, nil, func() string { return "ikey" }, "host", "instance", "role", "1.0", 0)

	for i := 0; i < sendQueueCapacity; i++ {
		require.True(t, fetcher.Tick(context.Background(), time.Now(), "stream-1"))
	}

	assert.False(t, fetcher.Tick(context.Background(), time.Now(), "stream-1"))
}

func TestDataFetcher_TickPublishesSnapshotToDebugBus(t *testing.T) {
	collector := NewCollector(nil, nil, nil)
	collector.Enable(func() string { return "ikey" })
	collector.SetQuickPulseStatus(QPIsOn)
	collector.Add(TelemetryItem{Kind: KindRequest, InstrumentationKey: "ikey", Name: "op", Success: true})

	eventBus := realtime.NewEventBus(slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, eventBus.Start(ctx))
	defer eventBus.Stop(context.Background())

	sub := newCapturingSubscriber("sub-1")
	require.NoError(t, eventBus.Subscribe(sub))

	publisher := realtime.NewEventPublisher(eventBus, slog.Default(), nil)
	fetcher := NewDataFetcher(collector, nil, nil, publisher, func() string { return "ikey" }, "host", "instance", "role", "1.0", 0)

	ok := fetcher.Tick(context.Background(), time.Now(), "stream-1")
	require.True(t, ok)

	select {
	case event := <-sub.events:
		assert.Equal(t, realtime.EventTypeSnapshotPosted, event.Type)
		assert.Equal(t, uint64(1), event.Data["requests"])
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot_posted event on the debug bus")
	}
}

func TestDataFetcher_RateLimiterRejectsExcessTicks(t *testing.T) {
	collector := NewCollector(nil, nil, nil)
	collector.Enable(func() string { return "ikey" })
	collector.SetQuickPulseStatus(QPIsOn)

	fetcher := NewDataFetcher(collector, nil, nil, nil, func() string { return "ikey" }, "host", "instance", "role", "1.0", 1)

	first := fetcher.Tick(context.Background(), time.Now(), "stream-1")
	second := fetcher.Tick(context.Background(), time.Now(), "stream-1")

	assert.True(t, first)
	assert.False(t, second)
}
