package debugserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/novaops/livemetrics-agent/internal/config"
	"github.com/novaops/livemetrics-agent/internal/livemetrics"
	"github.com/novaops/livemetrics-agent/internal/realtime"
)

// peekHandler exposes a non-destructive read of the Collector's current
// window, for local inspection without waiting on a subscribed client.
func peekHandler(collector *livemetrics.Collector, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, ok := collector.Peek()
		w.Header().Set("Content-Type", "application/json")

		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "disabled"})
			return
		}

		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logger.Error("failed to encode peek response", "error", err)
		}
	}
}

// streamHandler upgrades to a WebSocket and subscribes the connection to
// the debug event bus until the client disconnects.
func streamHandler(bus realtime.EventBus, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
			return
		}

		sub := newWSSubscriber(getRequestID(r.Context()), conn)
		if err := bus.Subscribe(sub); err != nil {
			logger.Warn("failed to subscribe debug stream client", "error", err)
			_ = conn.Close()
			return
		}

		logger.Info("debug stream client connected", "subscriber_id", sub.ID())
		sub.readPump(bus)
	}
}

// configHandler dumps the sanitized effective configuration as YAML, for
// local inspection of what the agent actually loaded (env overrides,
// defaults, and all) without ever exposing the instrumentation key.
func configHandler(cfg *config.Config, sanitizer config.ConfigSanitizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sanitized := sanitizer.Sanitize(cfg)

		w.Header().Set("Content-Type", "application/yaml")
		if err := yaml.NewEncoder(w).Encode(sanitized); err != nil {
			logger.Error("failed to encode config response", "error", err)
		}
	}
}

// healthHandler reports the coordinator's current state, for a quick
// liveness check distinct from the Prometheus-scraped /metrics endpoint.
func healthHandler(coordinator *livemetrics.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":            "ok",
			"coordinator_state": coordinator.State().String(),
		})
	}
}
