// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"net/http"
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/authz"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/cache"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/hub"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/store"
)

// Handler carries the dependencies of all API endpoints.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers (this file)
//   - handlers_channels.go: channel CRUD
//   - handlers_membership.go: join/leave/participants/token update
//   - handlers_transmissions.go: start/chunk/end/active/stream upgrade
//   - handlers_health.go: health endpoint
type Handler struct {
	store     *store.Store
	cache     *cache.ChannelCache
	registry  *agent.Registry
	streamHub *hub.Hub
	resolver  *authz.Resolver
	cfg       *config.Config
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(st *store.Store, ch *cache.ChannelCache, registry *agent.Registry,
	streamHub *hub.Hub, resolver *authz.Resolver, cfg *config.Config,
) *Handler {
	return &Handler{
		store:     st,
		cache:     ch,
		registry:  registry,
		streamHub: streamHub,
		resolver:  resolver,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// subject extracts the verified caller, which the auth middleware
// guarantees on every protected route.
func (h *Handler) subject(r *http.Request) (*auth.AuthSubject, error) {
	subject := auth.GetAuthSubject(r.Context())
	if subject == nil {
		return nil, errs.New(errs.KindUnauthenticated, "Authentication required")
	}
	return subject, nil
}

// websocketURL builds the stream endpoint URL handed to transmitters.
func (h *Handler) websocketURL(r *http.Request, channelUUID string) string {
	host := h.cfg.Server.PublicHost
	if host == "" {
		host = r.Host
	}
	return "wss://" + host + "/api/v1/transmissions/ws/" + channelUUID
}
