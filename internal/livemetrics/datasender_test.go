package livemetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSender_SendPublishesSubscribedResult(t *testing.T) {
	transport := &fakeTransport{postResp: ResponseHeaders{Subscribed: true, HasPollingIntervalHint: true, PollingIntervalHintMs: 500}}
	sender := NewDataSender(transport, nil, nil, func() string { return "ikey" })

	queue := make(chan PostRequest, 1)
	queue <- PostRequest{Envelopes: []PostEnvelope{{}}}
	close(queue)

	sender.Run(context.Background(), func() string { return "https://example.com" }, queue)

	select {
	case result := <-sender.Results():
		assert.True(t, result.Subscribed)
		assert.True(t, result.HasDelay)
		assert.Equal(t, int64(500), result.NextDelayMs)
	default:
		t.Fatal("expected a published result")
	}
}

func TestDataSender_TransportErrorPublishesUnsubscribed(t *testing.T) {
	transport := &fakeTransport{postErr: TransportError("boom", nil)}
	sender := NewDataSender(transport, nil, nil, func() string { return "ikey" })

	queue := make(chan PostRequest, 1)
	queue <- PostRequest{}
	close(queue)

	sender.Run(context.Background(), func() string { return "https://example.com" }, queue)

	result := <-sender.Results()
	assert.False(t, result.Subscribed)
}

func TestDataSender_PublishOverwritesUnreadResult(t *testing.T) {
	transport := &fakeTransport{postResp: ResponseHeaders{Subscribed: false}}
	sender := NewDataSender(transport, nil, nil, func() string { return "ikey" })

	sender.publish(PostResult{Subscribed: false})
	sender.publish(PostResult{Subscribed: true})

	result := <-sender.Results()
	assert.True(t, result.Subscribed)
}

func TestDataSender_RunStopsOnContextCancel(t *testing.T) {
	transport := &fakeTransport{}
	sender := NewDataSender(transport, nil, nil, func() string { return "ikey" })

	ctx, cancel := context.WithCancel(context.Background())
	queue := make(chan PostRequest)

	done := make(chan struct{})
	go func() {
		sender.Run(ctx, func() string { return "https://example.com" }, queue)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
	require.True(t, true)
}
