package livemetrics

import (
	"context"
	"log/slog"
)

// PingResult is what one ping round trip resolves to (spec §4.3). On a
// transport error Subscribed is false and no hint/redirect/etag is set.
type PingResult struct {
	Subscribed  bool
	NextDelayMs int64
	HasDelay    bool
	RedirectURL string
	HasRedirect bool
	ETag        string
}

// PingSender polls the remote service on a slow cadence to learn whether
// anyone is currently subscribed to live metrics (spec §4.3).
type PingSender struct {
	transport          Transport
	logger             *slog.Logger
	agentVersion       string
	machineName        string
	instanceName       string
	roleName           string
	streamID           string
	instrumentationKey InstrumentationKeySupplier
}

// NewPingSender constructs a Ping Sender bound to one instrumentation
// key supplier and stream identity.
func NewPingSender(transport Transport, logger *slog.Logger, agentVersion, machineName, instanceName, roleName, streamID string, keyFn InstrumentationKeySupplier) *PingSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &PingSender{
		transport:          transport,
		logger:             logger,
		agentVersion:       agentVersion,
		machineName:        machineName,
		instanceName:       instanceName,
		roleName:           roleName,
		streamID:           streamID,
		instrumentationKey: keyFn,
	}
}

// Ping sends one ping request and decodes the subscription result.
// Transport errors resolve to Subscribed=false rather than propagating,
// matching spec §4.3's "on transport error return OFF with a default
// retry delay" contract — the default retry delay itself is the
// Coordinator's concern, not the sender's.
func (p *PingSender) Ping(ctx context.Context, endpoint string, now int64, etag string) PingResult {
	ikey := p.instrumentationKey()

	var roleName *string
	if p.roleName != "" {
		roleName = &p.roleName
	}

	body := PingEnvelope{
		Documents:          nil,
		InstrumentationKey: nil,
		Metrics:            nil,
		InvariantVersion:   1,
		Timestamp:          dotNetDate(now),
		Version:            p.agentVersion,
		StreamID:           p.streamID,
		MachineName:        p.machineName,
		Instance:           p.instanceName,
		RoleName:           roleName,
	}

	headers := RequestHeaders{
		TransmissionTime:  now,
		StreamID:          p.streamID,
		MachineName:       p.machineName,
		InstanceName:      p.instanceName,
		RoleName:          p.roleName,
		ConfigurationETag: etag,
	}

	resp, err := p.transport.Ping(ctx, endpoint, ikey, body, headers)
	if err != nil {
		p.logger.Warn("ping failed", "error", err, "endpoint", endpoint)
		return PingResult{Subscribed: false}
	}

	result := PingResult{
		Subscribed: resp.Subscribed,
		ETag:       resp.ConfigurationETag,
	}
	if resp.HasPollingIntervalHint {
		result.NextDelayMs = resp.PollingIntervalHintMs
		result.HasDelay = true
	}
	if resp.EndpointRedirect != "" {
		result.RedirectURL = resp.EndpointRedirect
		result.HasRedirect = true
	}

	return result
}
