// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

// Command server runs the Shoprank recommendation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkim815/shoprank/internal/api"
	"github.com/dkim815/shoprank/internal/catalog"
	"github.com/dkim815/shoprank/internal/config"
	"github.com/dkim815/shoprank/internal/eventlog"
	"github.com/dkim815/shoprank/internal/feedbackbus"
	"github.com/dkim815/shoprank/internal/logging"
	"github.com/dkim815/shoprank/internal/recommend"
	"github.com/dkim815/shoprank/internal/recommend/storage"
	"github.com/dkim815/shoprank/internal/supervisor"
	"github.com/dkim815/shoprank/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.Logger()

	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("log_level", cfg.Logging.Level).
		Msg("Shoprank starting")

	// Log level follows the config file without a restart; everything
	// else requires one.
	if path := config.ActiveConfigFile(); path != "" {
		watchErr := config.WatchConfigFile(path, func() {
			reloaded, err := config.Load()
			if err != nil {
				logger.Warn().Err(err).Msg("Config reload failed, keeping current settings")
				return
			}
			logging.SetLevelString(reloaded.Logging.Level)
			logger.Info().Str("log_level", reloaded.Logging.Level).Msg("Log level reloaded")
		})
		if watchErr != nil {
			logger.Warn().Err(watchErr).Str("file", path).Msg("Config file watch unavailable")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog
	cat := catalog.NewStore()
	if cfg.Catalog.SeedFile != "" {
		n, err := cat.LoadFile(cfg.Catalog.SeedFile)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info().Int("products", n).Str("file", cfg.Catalog.SeedFile).Msg("Catalog seeded")
	}

	// Event log
	events, err := eventlog.Open(eventlog.Config{
		Dir:      cfg.EventLog.Dir,
		InMemory: cfg.EventLog.InMemory,
		EventTTL: cfg.EventLog.EventTTL,
	}, logger)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn().Err(err).Msg("Event log close failed")
		}
	}()

	// Model snapshot store
	snapshots, err := storage.NewStore(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	// Engine
	engineCfg := buildEngineConfig(cfg)
	engine, err := recommend.NewEngine(engineCfg, cat, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if cfg.Storage.RestoreOnStart {
		restoreEngineState(ctx, engine, snapshots, logger)
	}

	// Feedback pipeline
	bus := feedbackbus.New(logger)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("Feedback bus close failed")
		}
	}()

	fbRouter, err := feedbackbus.NewRouter(feedbackbus.RouterConfig{
		CloseTimeout:         cfg.Feedback.CloseTimeout,
		RetryMaxRetries:      cfg.Feedback.RetryMaxRetries,
		RetryInitialInterval: cfg.Feedback.RetryInitialInterval,
		RetryMaxInterval:     cfg.Feedback.RetryMaxInterval,
		RetryMultiplier:      2.0,
	}, bus, feedbackHandler(engine, cat, events))
	if err != nil {
		return fmt.Errorf("create feedback router: %w", err)
	}

	// HTTP server
	handler := api.NewHandler(engine, bus, events, cat)
	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	}))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewTree(slog.New(slog.NewJSONHandler(os.Stderr, nil)), treeCfg)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddLearningService(services.NewFeedbackService(fbRouter, logger))
	tree.AddLearningService(services.NewDedupSweepService(engine, engineCfg.Learner.DedupTTL, logger))
	tree.AddModelService(services.NewReestimateService(engine, cfg.Engine.ReestimateInterval, logger))
	if cfg.Storage.SnapshotInterval > 0 {
		tree.AddModelService(services.NewSnapshotService(
			engine, snapshots, cfg.Storage.SnapshotInterval, cfg.Storage.KeepVersions, logger))
	}
	tree.AddModelService(services.NewEventLogGCService(events, cfg.EventLog.GCInterval, logger))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logger.Info().Msg("Supervision tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logger.Info().Msg("Shoprank stopped")
	return nil
}
