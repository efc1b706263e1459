// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server composes the counsel service: configuration,
// storage, the submission pipeline, and the HTTP surface. Run blocks
// until the context is cancelled, then shuts everything down in
// reverse order.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/PraetorAI/PraetorLocal/pkg/extensions"
	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/agent"
	"github.com/PraetorAI/PraetorLocal/services/counsel/audit"
	"github.com/PraetorAI/PraetorLocal/services/counsel/config"
	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
	"github.com/PraetorAI/PraetorLocal/services/counsel/export"
	"github.com/PraetorAI/PraetorLocal/services/counsel/middleware"
	"github.com/PraetorAI/PraetorLocal/services/counsel/outbox"
	"github.com/PraetorAI/PraetorLocal/services/counsel/routes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/session"
	"github.com/PraetorAI/PraetorLocal/services/counsel/storage"
	"github.com/PraetorAI/PraetorLocal/services/counsel/submit"
	"github.com/PraetorAI/PraetorLocal/services/counsel/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	probeInterval   = 30 * time.Second
)

// Options configures a service run.
type Options struct {
	// ConfigPath is the YAML configuration file, created with defaults
	// on first run.
	ConfigPath string

	// Version is the build version reported in telemetry.
	Version string
}

// Run starts the counsel service and blocks until ctx is cancelled or
// a component fails fatally.
func Run(ctx context.Context, opts Options) error {
	bus := events.NewBus()

	mgr := config.NewManager(opts.ConfigPath, bus, logging.Default())
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := mgr.Current()

	log := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "counsel",
		JSON:    cfg.Logging.JSON,
	})
	defer log.Close()
	log.Info("starting counsel service", "version", opts.Version, "config", opts.ConfigPath)

	telCfg := cfg.Telemetry
	if opts.Version != "" {
		telCfg.ServiceVersion = opts.Version
	}
	telShutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telShutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}()

	storageCfg := storage.DefaultConfig(cfg.Outbox.Path)
	storageCfg.Logger = log.Slog()
	db, err := storage.Open(storageCfg)
	if err != nil {
		return fmt.Errorf("open outbox storage: %w", err)
	}
	defer db.Close()

	store, err := outbox.New(db, bus, log)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer store.Close()

	monitor := connectivity.NewMonitor(bus, true)
	latest := session.NewLatest(bus)

	client, err := agent.NewClient(agent.Config{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  mgr.AgentAPIKey,
		Timeout: time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		Monitor: monitor,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("create agent client: %w", err)
	}

	meter := otel.Meter("counsel")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	if err := metrics.RegisterOutboxDepth(meter, store.Len); err != nil {
		return fmt.Errorf("register outbox depth gauge: %w", err)
	}

	var sink telemetry.Sink = telemetry.NopSink{}
	if cfg.Influx.URL != "" {
		influx, err := telemetry.NewInfluxSink(cfg.Influx)
		if err != nil {
			log.Warn("influx sink unavailable, telemetry events disabled", "error", err.Error())
		} else {
			sink = influx
			defer influx.Close()
		}
	}

	var auditLogger extensions.AuditLogger
	fileLogger, err := extensions.NewFileAuditLogger(filepath.Join(cfg.Logging.Dir, "audit.jsonl"))
	if err != nil {
		log.Warn("audit log unavailable, events will be discarded", "error", err.Error())
	} else {
		auditLogger = fileLogger
	}
	recorder := audit.NewRecorder(auditLogger, log)
	defer recorder.Close()

	orch, err := submit.New(submit.Config{
		Client:  client,
		Outbox:  store,
		Monitor: monitor,
		Latest:  latest,
		Bus:     bus,
		Sink:    sink,
		Metrics: metrics,
		Audit:   recorder,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer orch.Close()

	var signer *export.Signer
	if cfg.Export.SigningURL != "" {
		signer = export.NewSigner(cfg.Export.SigningURL)
	}
	exporter := export.NewExporter(signer, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	defer limiter.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	routes.Setup(router, routes.Deps{
		Orchestrator: orch,
		Outbox:       store,
		Latest:       latest,
		Exporter:     exporter,
		Bus:          bus,
		Monitor:      monitor,
		Auth:         &extensions.NopAuthProvider{},
		Authz:        &extensions.NopAuthzProvider{},
		RateLimiter:  limiter,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return mgr.Watch(gctx)
	})

	g.Go(func() error {
		probeAgent(gctx, client, monitor)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// probeAgent pings the agent health endpoint while the service is
// offline so queued research flushes without waiting for the next
// user action. The health call itself reports the outcome to the
// connectivity monitor.
func probeAgent(ctx context.Context, client *agent.Client, monitor *connectivity.Monitor) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if monitor.Online() {
				continue
			}
			_ = client.Health(ctx)
		}
	}
}
