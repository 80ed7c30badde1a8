package livemetrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDotNetDate(t *testing.T) {
	assert.Equal(t, "/Date(0)/", dotNetDate(0))
	assert.Equal(t, "/Date(1700000000000)/", dotNetDate(1700000000000))
}

func TestDocumentDTO_Request(t *testing.T) {
	doc := Document{
		Kind:         DocumentKindRequest,
		Name:         "GET /foo",
		Success:      true,
		DurationMs:   1500,
		ResponseCode: "200",
		URL:          "http://example.com/foo",
		OperationID:  "op-1",
	}

	dto := documentDTO(doc)
	assert.Equal(t, string(DocumentKindRequest), dto.Type)
	assert.Equal(t, "Request", dto.DocumentType)
	assert.Equal(t, "GET /foo", dto.Name)
	assert.Equal(t, "00:00:01.500", dto.Duration)
	assert.Equal(t, "200", dto.ResponseCode)
}

func TestDocumentDTO_Dependency(t *testing.T) {
	doc := Document{
		Kind:       DocumentKindDependency,
		Name:       "SQL call",
		Command:    "SELECT 1",
		ResultCode: "0",
		Target:     "db.internal",
		Type:       "SQL",
	}

	dto := documentDTO(doc)
	assert.Equal(t, "RemoteDependency", dto.DocumentType)
	assert.Equal(t, "SELECT 1", dto.Command)
	assert.Equal(t, "SQL", dto.DependencyTypeName)
}

func TestDocumentDTO_Exception(t *testing.T) {
	doc := Document{
		Kind:           DocumentKindException,
		ExceptionStack: "at foo()",
		Message:        "boom",
		ExceptionType:  "RuntimeError",
	}

	dto := documentDTO(doc)
	assert.Equal(t, "Exception", dto.DocumentType)
	assert.Equal(t, "boom", dto.Message)
	assert.Equal(t, "RuntimeError", dto.ExceptionType)
}

func TestBuildMetrics_FixedOrderAndValues(t *testing.T) {
	snap := CounterSnapshot{
		Requests:             10,
		UnsuccessfulRequests: 2,
		RequestsDuration:     1000,
		Rdds:                 4,
		UnsuccessfulRdds:     1,
		RddsDuration:         400,
		Exceptions:           3,
	}

	metrics := buildMetrics(snap, 2.0, 123456, 45.5)
	require.Len(t, metrics, 11)

	wantOrder := []string{
		metricRequestsPerSec, metricRequestDuration, metricRequestsFailedPerSec, metricRequestsSucceededPerSec,
		metricDependencyCallsPerSec, metricDependencyCallDuration, metricDependencyCallsFailed, metricDependencyCallsSucceeded,
		metricExceptionsPerSec, metricMemoryCommittedBytes, metricProcessorTime,
	}
	for i, name := range wantOrder {
		assert.Equal(t, name, metrics[i].Name)
	}

	byName := make(map[string]MetricPoint, len(metrics))
	for _, m := range metrics {
		byName[m.Name] = m
	}

	assert.Equal(t, float64(10), byName[metricRequestsPerSec].Value)
	assert.Equal(t, float64(2), byName[metricRequestsFailedPerSec].Value)
	assert.Equal(t, float64(8), byName[metricRequestsSucceededPerSec].Value)
	assert.Equal(t, 100.0, byName[metricRequestDuration].Value) // 1000ms / 10 requests
	assert.Equal(t, float64(3), byName[metricExceptionsPerSec].Value)
	assert.Equal(t, float64(123456), byName[metricMemoryCommittedBytes].Value)
	assert.Equal(t, 45.5, byName[metricProcessorTime].Value)
}

func TestBuildMetrics_ZeroWindowFallsBackToOne(t *testing.T) {
	metrics := buildMetrics(CounterSnapshot{}, 0, 0, 0)
	for _, m := range metrics {
		if m.Name == metricRequestsPerSec {
			assert.Equal(t, 1.0, m.Weight)
		}
	}
}

func TestPostEnvelope_JSONShape(t *testing.T) {
	envelope := PostEnvelope{
		Documents:          nil,
		InstrumentationKey: "ikey",
		Metrics:            []MetricPoint{{Name: "x", Value: 1, Weight: 1}},
		InvariantVersion:   1,
		Timestamp:          dotNetDate(0),
		StreamID:           nil,
		MachineName:        "host",
		Instance:           "host-instance",
	}

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["StreamId"])
	assert.Equal(t, "ikey", decoded["InstrumentationKey"])
}
