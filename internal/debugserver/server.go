// Package debugserver exposes a small local HTTP surface for inspecting
// a running agent: a Prometheus scrape endpoint, a point-in-time snapshot
// of the Collector, and a WebSocket stream of engine events. None of this
// is part of the documented QuickPulseService protocol — it is purely a
// developer aid layered on top of the engine.
package debugserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/novaops/livemetrics-agent/internal/config"
	"github.com/novaops/livemetrics-agent/internal/livemetrics"
	"github.com/novaops/livemetrics-agent/internal/realtime"
	pkgmetrics "github.com/novaops/livemetrics-agent/pkg/metrics"
)

// Config holds the debug server's listen and timeout settings.
type Config struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
	MetricsEnabled          bool
	MetricsPath             string
}

// Server is the debug HTTP server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server wired to the given engine components. bus may be
// nil, in which case the stream endpoint responds 503. agentCfg and
// sanitizer may be nil, in which case the config dump endpoint responds
// 503 instead of leaking an empty document.
func New(cfg Config, collector *livemetrics.Collector, coordinator *livemetrics.Coordinator, bus realtime.EventBus, agentCfg *config.Config, sanitizer config.ConfigSanitizer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(recoveryMiddleware(logger))
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/healthz", healthHandler(coordinator)).Methods(http.MethodGet)
	router.HandleFunc("/debug/livemetrics/peek", peekHandler(collector, logger)).Methods(http.MethodGet)

	if agentCfg != nil && sanitizer != nil {
		router.HandleFunc("/debug/config", configHandler(agentCfg, sanitizer, logger)).Methods(http.MethodGet)
	} else {
		router.HandleFunc("/debug/config", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "config dump disabled", http.StatusServiceUnavailable)
		}).Methods(http.MethodGet)
	}

	if bus != nil {
		router.HandleFunc("/debug/livemetrics/stream", streamHandler(bus, logger)).Methods(http.MethodGet)
	} else {
		router.HandleFunc("/debug/livemetrics/stream", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "debug stream disabled", http.StatusServiceUnavailable)
		}).Methods(http.MethodGet)
	}

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, pkgmetrics.NewHTTPMetrics().Handler()).Methods(http.MethodGet)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Run starts the server and blocks until ctx is cancelled, then performs a
// graceful shutdown bounded by cfg.GracefulShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("debug server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("debug server shutting down")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
