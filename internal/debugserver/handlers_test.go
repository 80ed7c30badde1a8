package debugserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaops/livemetrics-agent/internal/livemetrics"
)

func TestPeekHandler_DisabledCollectorReturnsServiceUnavailable(t *testing.T) {
	collector := livemetrics.NewCollector(nil, nil, nil)
	handler := peekHandler(collector, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/livemetrics/peek", nil)
	handler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disabled", body["status"])
}

func TestPeekHandler_EnabledCollectorReturnsSnapshot(t *testing.T) {
	collector := livemetrics.NewCollector(nil, nil, nil)
	collector.Enable(func() string { return "ikey" })
	handler := peekHandler(collector, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/livemetrics/peek", nil)
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func newTestCoordinatorForHealth() *livemetrics.Coordinator {
	collector := livemetrics.NewCollector(nil, nil, nil)
	pinger := livemetrics.NewPingSender(nil, nil, "1.0", "host", "instance", "role", "stream-1", func() string { return "ikey" })
	fetcher := livemetrics.NewDataFetcher(collector, nil, nil, nil, func() string { return "ikey" }, "host", "instance", "role", "1.0", 0)
	sender := livemetrics.NewDataSender(nil, nil, nil, func() string { return "ikey" })
	cfg := livemetrics.DefaultCoordinatorConfig("https://example.com")
	return livemetrics.NewCoordinator(cfg, collector, pinger, fetcher, sender, nil, nil, nil)
}

func TestHealthHandler_ReportsCoordinatorState(t *testing.T) {
	coordinator := newTestCoordinatorForHealth()
	handler := healthHandler(coordinator)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, coordinator.State().String(), body["coordinator_state"])
}
