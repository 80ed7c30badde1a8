package livemetrics

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// RequestHeaders carries the common outbound headers spec §6.2 requires
// on every ping and post request.
type RequestHeaders struct {
	TransmissionTime  int64 // wall-clock unix millis as passed by the caller (not a monotonic reading), sent as transmissionTime*10000
	StreamID          string
	MachineName       string
	InstanceName      string
	RoleName          string
	ConfigurationETag string // omitted when empty
}

// ResponseHeaders is the decoded subset of inbound headers spec §6.5
// defines. Ping and post responses share this shape.
type ResponseHeaders struct {
	Subscribed             bool
	PollingIntervalHintMs  int64
	HasPollingIntervalHint bool
	EndpointRedirect       string
	ConfigurationETag      string
}

// Transport sends the ping/post JSON bodies and decodes the response
// headers. Implementations must never retry internally — the Coordinator
// owns retry cadence (spec §4.7).
type Transport interface {
	Ping(ctx context.Context, endpoint, instrumentationKey string, body PingEnvelope, headers RequestHeaders) (ResponseHeaders, error)
	Post(ctx context.Context, endpoint, instrumentationKey string, body []PostEnvelope, headers RequestHeaders) (ResponseHeaders, error)
}

// httpTransport is the net/http-backed Transport. Connection pooling and
// timeouts follow the teacher's webhook client settings: HTTP/2 enabled,
// TLS 1.2 minimum, bounded idle connections, and a request-level timeout
// independent of the per-dial timeouts.
type httpTransport struct {
	client       *http.Client
	agentVersion string
}

// NewHTTPTransport builds the default Transport. requestTimeout bounds
// one ping or post round trip; it does not bound the Coordinator's tick
// cadence.
func NewHTTPTransport(requestTimeout time.Duration, agentVersion string) Transport {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return &httpTransport{client: client, agentVersion: agentVersion}
}

func (t *httpTransport) Ping(ctx context.Context, endpoint, instrumentationKey string, body PingEnvelope, headers RequestHeaders) (ResponseHeaders, error) {
	return t.do(ctx, endpoint+"/QuickPulseService.svc/ping?ikey="+instrumentationKey, body, headers)
}

func (t *httpTransport) Post(ctx context.Context, endpoint, instrumentationKey string, body []PostEnvelope, headers RequestHeaders) (ResponseHeaders, error) {
	return t.do(ctx, endpoint+"/QuickPulseService.svc/post?ikey="+instrumentationKey, body, headers)
}

func (t *httpTransport) do(ctx context.Context, url string, body interface{}, headers RequestHeaders) (ResponseHeaders, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return ResponseHeaders{}, IngestionError("failed to marshal envelope", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return ResponseHeaders{}, TransportError("failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "livemetrics-agent/"+t.agentVersion)
	req.Header.Set("x-ms-qps-transmission-time", fmt.Sprintf("%d", headers.TransmissionTime*10000))
	req.Header.Set("x-ms-qps-stream-id", headers.StreamID)
	req.Header.Set("x-ms-qps-machine-name", headers.MachineName)
	req.Header.Set("x-ms-qps-instance-name", headers.InstanceName)
	req.Header.Set("x-ms-qps-role-name", headers.RoleName)
	req.Header.Set("x-ms-qps-invariant-version", "1")
	if headers.ConfigurationETag != "" {
		req.Header.Set("x-ms-qps-configuration-etag", headers.ConfigurationETag)
	}

	resp, err := t.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if classified := classifyTransportError(resp, err); classified != nil {
		return ResponseHeaders{}, classified
	}

	return decodeResponseHeaders(resp), nil
}

func decodeResponseHeaders(resp *http.Response) ResponseHeaders {
	out := ResponseHeaders{
		Subscribed:        resp.Header.Get("x-ms-qps-subscribed") == "true",
		EndpointRedirect:  resp.Header.Get("x-ms-qps-service-endpoint-redirect-v2"),
		ConfigurationETag: resp.Header.Get("x-ms-qps-configuration-etag"),
	}

	if hint := resp.Header.Get("x-ms-qps-service-polling-interval-hint"); hint != "" {
		var ms int64
		if _, err := fmt.Sscanf(hint, "%d", &ms); err == nil && ms > 0 {
			out.PollingIntervalHintMs = ms
			out.HasPollingIntervalHint = true
		}
	}

	return out
}
