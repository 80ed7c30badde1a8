// Package main is the entry point for the live-metrics agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/novaops/livemetrics-agent/internal/config"
	"github.com/novaops/livemetrics-agent/internal/debugserver"
	"github.com/novaops/livemetrics-agent/internal/livemetrics"
	"github.com/novaops/livemetrics-agent/internal/livemetrics/metrics"
	"github.com/novaops/livemetrics-agent/internal/realtime"
	"github.com/novaops/livemetrics-agent/pkg/logger"
)

const (
	serviceName    = "livemetrics-agent"
	serviceVersion = "1.0.0"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	sanitizer := config.NewDefaultConfigSanitizer()
	log.Info("starting live-metrics agent",
		"service", serviceName,
		"version", serviceVersion,
		"config", sanitizer.Sanitize(cfg),
	)

	engineMetrics := metrics.DefaultRegistry().Engine()

	host := livemetrics.NewHostSampler(log, cfg.LiveMetrics.NonNormalizedCPU)
	collector := livemetrics.NewCollector(log, host, engineMetrics)
	collector.Enable(func() string { return cfg.LiveMetrics.InstrumentationKey })

	transport := livemetrics.NewHTTPTransport(cfg.LiveMetrics.RequestTimeout, cfg.LiveMetrics.AgentVersion)

	coordCfg := livemetrics.DefaultCoordinatorConfig(cfg.LiveMetrics.Endpoint)
	coordCfg.PingInterval = cfg.LiveMetrics.PingInterval
	coordCfg.PostInterval = cfg.LiveMetrics.PostInterval
	coordCfg.WaitOnError = cfg.LiveMetrics.WaitOnError
	if cfg.LiveMetrics.StreamIDSeed != "" {
		coordCfg.StreamID = cfg.LiveMetrics.StreamIDSeed
	}

	keyFn := func() string { return cfg.LiveMetrics.InstrumentationKey }

	eventBus := realtime.NewEventBus(log, realtime.NewRealtimeMetrics("livemetrics_agent"))
	publisher := realtime.NewEventPublisher(eventBus, log, nil)

	pinger := livemetrics.NewPingSender(
		transport, log,
		cfg.LiveMetrics.AgentVersion,
		cfg.LiveMetrics.MachineName,
		cfg.LiveMetrics.InstanceName,
		cfg.LiveMetrics.RoleName,
		coordCfg.StreamID,
		keyFn,
	)

	fetcher := livemetrics.NewDataFetcher(
		collector, log, engineMetrics, publisher, keyFn,
		cfg.LiveMetrics.MachineName,
		cfg.LiveMetrics.InstanceName,
		cfg.LiveMetrics.RoleName,
		cfg.LiveMetrics.AgentVersion,
		cfg.LiveMetrics.MaxFetcherTicksPerSecond,
	)

	sender := livemetrics.NewDataSender(transport, log, engineMetrics, keyFn)

	coordinator := livemetrics.NewCoordinator(coordCfg, collector, pinger, fetcher, sender, log, engineMetrics, publisher)

	debugSrv := debugserver.New(debugserver.Config{
		Host:                    cfg.Server.Host,
		Port:                    cfg.Server.Port,
		ReadTimeout:             cfg.Server.ReadTimeout,
		WriteTimeout:            cfg.Server.WriteTimeout,
		IdleTimeout:             cfg.Server.IdleTimeout,
		GracefulShutdownTimeout: cfg.Server.GracefulShutdownTimeout,
		MetricsEnabled:          cfg.Metrics.Enabled,
		MetricsPath:             cfg.Metrics.Path,
	}, collector, coordinator, eventBus, cfg, sanitizer, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eventBus.Start(ctx); err != nil {
			log.Error("event bus failed to start", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sender.Run(ctx, coordinator.CurrentEndpoint, fetcher.Queue())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		coordinator.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := debugSrv.Run(ctx); err != nil {
			log.Error("debug server exited with error", "error", err)
		}
	}()

	if err := publisher.PublishSystemNotification("info", "agent started"); err != nil {
		log.Warn("failed to publish startup notification", "error", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received, draining components")

	wg.Wait()
	log.Info("agent stopped")
}
