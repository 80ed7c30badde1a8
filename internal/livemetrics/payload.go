package livemetrics

import (
	"fmt"
	"strconv"
)

// Metric names, fixed and ordered, forming the 11-element array required
// by every post payload (spec §6.4). Order matches the wire contract;
// callers must never reorder or omit an entry.
const (
	metricRequestsPerSec           = `\ApplicationInsights\Requests/Sec`
	metricRequestDuration          = `\ApplicationInsights\Request Duration`
	metricRequestsFailedPerSec     = `\ApplicationInsights\Requests Failed/Sec`
	metricRequestsSucceededPerSec  = `\ApplicationInsights\Requests Succeeded/Sec`
	metricDependencyCallsPerSec    = `\ApplicationInsights\Dependency Calls/Sec`
	metricDependencyCallDuration   = `\ApplicationInsights\Dependency Call Duration`
	metricDependencyCallsFailed    = `\ApplicationInsights\Dependency Calls Failed/Sec`
	metricDependencyCallsSucceeded = `\ApplicationInsights\Dependency Calls Succeeded/Sec`
	metricExceptionsPerSec         = `\ApplicationInsights\Exceptions/Sec`
	metricMemoryCommittedBytes     = `\Memory\Committed Bytes`
	metricProcessorTime            = `\Processor(_Total)\% Processor Time`
)

// MetricPoint is one entry of the Metrics array in a post payload.
type MetricPoint struct {
	Name   string  `json:"Name"`
	Value  float64 `json:"Value"`
	Weight float64 `json:"Weight"`
}

// DocumentDTO is the wire shape for one retained Document, discriminated
// by __type (spec §6.4). Fields irrelevant to a given DocumentType are
// omitted via `omitempty`/zero value by the encoder's normal behavior.
type DocumentDTO struct {
	Type               string            `json:"__type"`
	DocumentType       string            `json:"DocumentType"`
	Name               string            `json:"Name,omitempty"`
	Success            bool              `json:"Success,omitempty"`
	Duration           string            `json:"Duration,omitempty"`
	ResponseCode       string            `json:"ResponseCode,omitempty"`
	URL                string            `json:"Url,omitempty"`
	OperationID        string            `json:"OperationId,omitempty"`
	Command            string            `json:"CommandName,omitempty"`
	ResultCode         string            `json:"ResultCode,omitempty"`
	Target             string            `json:"Target,omitempty"`
	DependencyTypeName string            `json:"DependencyTypeName,omitempty"`
	ExceptionStack     string            `json:"ExceptionStackTrace,omitempty"`
	Message            string            `json:"ExceptionMessage,omitempty"`
	ExceptionType      string            `json:"ExceptionType,omitempty"`
	Properties         map[string]string `json:"Properties,omitempty"`
}

// PingEnvelope is the body of a ping request (spec §6.3).
type PingEnvelope struct {
	Documents          interface{} `json:"Documents"`
	InstrumentationKey interface{} `json:"InstrumentationKey"`
	Metrics            interface{} `json:"Metrics"`
	InvariantVersion   int         `json:"InvariantVersion"`
	Timestamp          string      `json:"Timestamp"`
	Version            string      `json:"Version"`
	StreamID           string      `json:"StreamId"`
	MachineName        string      `json:"MachineName"`
	Instance           string      `json:"Instance"`
	RoleName           *string     `json:"RoleName"`
}

// PostEnvelope is the single element of a post request's JSON array
// (spec §6.4). A post is always wrapped as []PostEnvelope{envelope}.
type PostEnvelope struct {
	Documents          []DocumentDTO `json:"Documents"`
	InstrumentationKey string        `json:"InstrumentationKey"`
	Metrics            []MetricPoint `json:"Metrics"`
	InvariantVersion   int           `json:"InvariantVersion"`
	Timestamp          string        `json:"Timestamp"`
	Version            string        `json:"Version"`
	StreamID           *string       `json:"StreamId"`
	MachineName        string        `json:"MachineName"`
	Instance           string        `json:"Instance"`
	RoleName           *string       `json:"RoleName"`
}

// dotNetDate formats unixMillis using the `/Date(<ms>)/` convention the
// remote service expects (spec §6.3).
func dotNetDate(unixMillis int64) string {
	return "/Date(" + strconv.FormatInt(unixMillis, 10) + ")/"
}

// documentDTO converts a retained Document into its wire shape.
func documentDTO(d Document) DocumentDTO {
	dto := DocumentDTO{
		Properties: d.Properties,
	}

	switch d.Kind {
	case DocumentKindRequest:
		dto.Type = string(DocumentKindRequest)
		dto.DocumentType = "Request"
		dto.Name = d.Name
		dto.Success = d.Success
		dto.Duration = formatDurationText(d.DurationMs)
		dto.ResponseCode = d.ResponseCode
		dto.URL = d.URL
		dto.OperationID = d.OperationID
	case DocumentKindDependency:
		dto.Type = string(DocumentKindDependency)
		dto.DocumentType = "RemoteDependency"
		dto.Name = d.Name
		dto.Success = d.Success
		dto.Duration = formatDurationText(d.DurationMs)
		dto.Command = d.Command
		dto.ResultCode = d.ResultCode
		dto.Target = d.Target
		dto.DependencyTypeName = d.Type
		dto.OperationID = d.OperationID
	case DocumentKindException:
		dto.Type = string(DocumentKindException)
		dto.DocumentType = "Exception"
		dto.ExceptionStack = d.ExceptionStack
		dto.Message = d.Message
		dto.ExceptionType = d.ExceptionType
	}

	return dto
}

// formatDurationText renders milliseconds back into the "hh:mm:ss.fff"
// wire shape documents carry (the inverse of parseDuration, minus the
// optional day prefix which the Collector never needs to reconstruct
// since it only ever stores whole milliseconds internally).
func formatDurationText(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / msPerSecond
	remMs := ms % msPerSecond

	hh := totalSeconds / 3600
	mm := (totalSeconds % 3600) / 60
	ss := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hh, mm, ss, remMs)
}

// buildMetrics derives the fixed 11-metric array from one window's
// snapshot (spec §6.4). windowSeconds is the elapsed time the snapshot
// covers; 1 is substituted when unknown to avoid a divide-by-zero-shaped
// weight.
func buildMetrics(snap CounterSnapshot, windowSeconds float64, memBytes int64, cpuPercent float64) []MetricPoint {
	if windowSeconds <= 0 {
		windowSeconds = 1
	}

	avgDuration := func(sumMs, count uint64) float64 {
		if count == 0 {
			return 0
		}
		return float64(sumMs) / float64(count)
	}

	weightOrOne := func(count uint64) float64 {
		if count == 0 {
			return 1
		}
		return float64(count)
	}

	succeededReq := snap.Requests - snap.UnsuccessfulRequests
	succeededRdd := snap.Rdds - snap.UnsuccessfulRdds

	return []MetricPoint{
		{Name: metricRequestsPerSec, Value: float64(snap.Requests), Weight: windowSeconds},
		{Name: metricRequestDuration, Value: avgDuration(snap.RequestsDuration, snap.Requests), Weight: weightOrOne(snap.Requests)},
		{Name: metricRequestsFailedPerSec, Value: float64(snap.UnsuccessfulRequests), Weight: windowSeconds},
		{Name: metricRequestsSucceededPerSec, Value: float64(succeededReq), Weight: windowSeconds},
		{Name: metricDependencyCallsPerSec, Value: float64(snap.Rdds), Weight: windowSeconds},
		{Name: metricDependencyCallDuration, Value: avgDuration(snap.RddsDuration, snap.Rdds), Weight: weightOrOne(snap.Rdds)},
		{Name: metricDependencyCallsFailed, Value: float64(snap.UnsuccessfulRdds), Weight: windowSeconds},
		{Name: metricDependencyCallsSucceeded, Value: float64(succeededRdd), Weight: windowSeconds},
		{Name: metricExceptionsPerSec, Value: float64(snap.Exceptions), Weight: windowSeconds},
		{Name: metricMemoryCommittedBytes, Value: float64(memBytes), Weight: 1},
		{Name: metricProcessorTime, Value: cpuPercent, Weight: 1},
	}
}
