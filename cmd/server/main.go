// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package main is the entry point for the ParaWave PTT server.
//
// The server is the real-time push-to-talk channel core for paragliding
// pilots: pilots join named channels, request the floor, and while one pilot
// transmits their audio chunks fan out to every other participant over a
// websocket stream and the push-notification gateway.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml, env)
//  2. Logging: zerolog, JSON in production
//  3. Channel store: DuckDB with the channels/participants/events/history schema
//  4. Channel cache: BadgerDB with TTL-bounded entries
//  5. Registrar bus: Watermill gochannel Pub/Sub for permission intents
//  6. Push fan-out: gateway client with circuit breaker (optional)
//  7. Agent registry: per-channel single-threaded state owners
//  8. Stream hub + Control API: Chi router under /api/v1
//  9. Supervision: suture tree running the registrar and HTTP server
//
// # Configuration
//
// Required: AUTH_ISSUER_URL, AUTH_AUDIENCE. Everything else has defaults;
// see the config package for the full environment variable set.
//
// # Signal handling
//
// SIGINT/SIGTERM trigger graceful shutdown: the HTTP server drains, agents
// end active transmissions with the shutdown reason, stream subscribers are
// closed, and the store and cache are flushed.
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
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/api"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/authz"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/cache"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/hub"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/push"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/registrar"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/store"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("parawave ptt server starting")

	// Durable channel store
	st, err := store.New(&cfg.Database, cfg.PTT.DefaultMaxParticipants)
	if err != nil {
		return fmt.Errorf("failed to open channel store: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Short-TTL channel cache; every store mutation invalidates it
	channelCache, err := cache.New(&cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open channel cache: %w", err)
	}
	defer func() { _ = channelCache.Close() }()
	st.SetCache(channelCache)

	// Registrar intent bus. The store publishes lifecycle intents whether
	// or not a registrar consumes them.
	bus := registrar.NewBus()
	defer func() { _ = bus.Close() }()
	st.SetIntentPublisher(registrar.NewPublisher(bus))

	// Push fan-out (nil when no gateway is configured)
	fanout := push.New(&cfg.Push, st)
	var notifier agent.Notifier
	if fanout != nil {
		notifier = fanout
	} else {
		logging.Warn().Msg("push gateway not configured; push fan-out disabled")
	}

	// Per-channel agents
	registry := agent.NewRegistry(st, notifier, agent.Options{
		MaxTransmissionDuration: cfg.PTT.MaxTransmissionDuration,
		ParticipantTimeout:      cfg.PTT.ParticipantTimeout,
	})
	defer registry.Shutdown()

	// Identity verification and permissions
	verifier := auth.NewVerifier(&cfg.Auth)
	resolver := authz.NewResolver(&cfg.Auth)

	// Stream hub
	streamHub := hub.New(registry, resolver, st, cfg.Server.CORSOrigins)
	defer streamHub.Shutdown()

	// Control API
	handler := api.NewHandler(st, channelCache, registry, streamHub, resolver, cfg)
	router := api.NewRouter(handler, verifier, api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	}))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// WriteTimeout stays unset: stream connections are long-lived
	}

	// Supervision tree
	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())

	if mgmt := registrar.NewManagementClient(&cfg.Auth); mgmt != nil {
		tree.AddMessaging(registrar.New(bus, mgmt, cfg.Auth.AccessPermissionPrefix))
	} else {
		logging.Warn().Msg("management credentials not configured; permission registrar disabled")
	}
	tree.AddAPI(&supervisor.HTTPService{Server: httpServer})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("parawave ptt server stopped")
	return nil
}
