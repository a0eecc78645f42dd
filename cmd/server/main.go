// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package main is the entry point for the Viewguard server.
//
// Viewguard tracks learner engagement with course videos: playback
// events stream in over WebSocket, per-unit progress is persisted to
// BadgerDB, behavioral events are archived to DuckDB for reporting,
// and an anti-skip guard keeps required viewing honest.
//
// Startup order:
//
//  1. Configuration (Koanf v2: defaults, config.yaml, environment)
//  2. Logging (zerolog)
//  3. Course catalog (YAML, read-only)
//  4. Progress store (BadgerDB behind a circuit breaker)
//  5. Event archive (DuckDB, optional) and its firehose consumer
//  6. JetStream forwarder (optional, requires -tags=nats)
//  7. Authentication, authorization, session manager
//  8. HTTP server under the supervisor tree
//
// Graceful shutdown on SIGINT/SIGTERM tears down live sessions so
// their final progress saves land, then flushes and closes the stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viewguard/viewguard/internal/api"
	"github.com/viewguard/viewguard/internal/archive"
	"github.com/viewguard/viewguard/internal/auth"
	"github.com/viewguard/viewguard/internal/authz"
	"github.com/viewguard/viewguard/internal/config"
	"github.com/viewguard/viewguard/internal/course"
	"github.com/viewguard/viewguard/internal/eventstream"
	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/session"
	"github.com/viewguard/viewguard/internal/store"
	"github.com/viewguard/viewguard/internal/supervisor"
	"github.com/viewguard/viewguard/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Msg("starting viewguard")

	catalog, err := course.LoadCatalog(cfg.Courses.CatalogPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Courses.CatalogPath).Msg("failed to load course catalog")
	}
	logging.Info().Int("courses", catalog.Len()).Msg("course catalog loaded")

	db, err := store.OpenBadger(cfg.Storage.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to open progress store")
	}
	progressStore := store.NewBreakerStore(db, store.DefaultBreakerConfig())
	defer func() {
		if err := progressStore.Close(); err != nil {
			logging.Error().Err(err).Msg("progress store close failed")
		}
	}()

	bus := tracking.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("event bus close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	var reporter api.EngagementReporter
	if cfg.Archive.Enabled {
		arc, err := archive.Open(archive.Config{
			Path:          cfg.Archive.Path,
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		})
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Archive.Path).Msg("failed to open event archive")
		}
		defer func() {
			if err := arc.Close(); err != nil {
				logging.Error().Err(err).Msg("event archive close failed")
			}
		}()
		reporter = arc

		consumer := archive.NewConsumer(bus, arc)
		tree.AddIngestService(supervisor.NewRunnerService("archive-consumer", consumer.Start, consumer.Wait))
		logging.Info().Str("path", cfg.Archive.Path).Msg("event archive enabled")
	}

	if cfg.NATS.Enabled {
		forwarder, err := eventstream.NewForwarder(eventstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			EmbeddedServer: cfg.NATS.EmbeddedServer,
			StoreDir:       cfg.NATS.StoreDir,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to start event stream forwarder")
		}
		defer func() {
			if err := forwarder.Close(); err != nil {
				logging.Error().Err(err).Msg("event stream forwarder close failed")
			}
		}()
		if err := forwarder.Start(ctx, bus); err != nil {
			logging.Fatal().Err(err).Msg("event stream forwarder subscribe failed")
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
	if err != nil {
		logging.Fatal().Err(err).Msg("JWT_SECRET invalid")
	}

	var verifier *auth.AdminVerifier
	if cfg.Security.AdminUsername != "" {
		verifier, err = auth.NewAdminVerifier(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash)
		if err != nil {
			logging.Fatal().Err(err).Msg("admin credentials invalid")
		}
	} else {
		logging.Warn().Msg("admin login disabled: ADMIN_USERNAME not set")
	}

	enforcer, err := authz.NewEnforcer(authz.Config{
		ModelPath:  cfg.Security.CasbinModelPath,
		PolicyPath: cfg.Security.CasbinPolicyPath,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize authorization")
	}

	manager := session.NewManager(progressStore, bus)

	handler := api.NewHandler(api.HandlerConfig{
		Catalog:  catalog,
		Store:    progressStore,
		Manager:  manager,
		JWT:      jwtMgr,
		Verifier: verifier,
		Enforcer: enforcer,
		Reporter: reporter,
	})
	ws := api.NewWSHandler(manager, catalog, enforcer)
	router := api.NewRouter(handler, ws, auth.NewMiddleware(jwtMgr), api.MiddlewareConfig{
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitReqs,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	logging.Info().Str("addr", server.Addr).Msg("viewguard listening")
	treeErr := <-tree.ServeBackground(ctx)

	// Tear down live sessions before the stores close so the final
	// progress saves land.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.TeardownAll(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("session teardown failed during shutdown")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("supervisor tree exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("viewguard stopped")
}
