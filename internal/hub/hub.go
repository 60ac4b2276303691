// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package hub is the bidirectional streaming plane: one websocket endpoint
// per channel carrying live audio chunk fan-out downstream and heartbeat,
// location, quality, and emergency messages upstream.
//
// The hub owns connections and their bounded send queues; the channel agent
// owns the subscription set and decides what each subscriber receives. A
// connection whose queue overflows is closed with the slow_consumer reason
// so one stalled client never blocks the rest of the channel.
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/authz"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/metrics"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// ParticipantReader is the store slice the hub needs for the upgrade
// handshake.
type ParticipantReader interface {
	GetParticipant(ctx context.Context, channelUUID, userID string) (*models.Participant, error)
}

// Hub upgrades stream connections and bridges them to channel agents.
type Hub struct {
	registry     *agent.Registry
	resolver     *authz.Resolver
	participants ParticipantReader
	upgrader     websocket.Upgrader

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// New creates the stream hub. allowedOrigins is the CORS allow-list applied
// to the upgrade handshake; "*" allows any origin.
func New(registry *agent.Registry, resolver *authz.Resolver, participants ParticipantReader, allowedOrigins []string) *Hub {
	h := &Hub{
		registry:     registry,
		resolver:     resolver,
		participants: participants,
		conns:        make(map[*Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return h
}

// originChecker validates the Origin header against the allow-list.
// Requests without an Origin header (native mobile clients) are allowed;
// browsers always send one.
func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		logging.Warn().Str("origin", origin).Msg("stream upgrade rejected from unauthorized origin")
		return false
	}
}

// HandleUpgrade performs the stream handshake for a channel: the caller
// must be authenticated (C1, done by the router middleware), hold the
// channel's access scope (C2), and be a current participant with a non-null
// ephemeral push token.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request, channelUUID string) error {
	subject := auth.GetAuthSubject(r.Context())
	if subject == nil {
		return errs.New(errs.KindUnauthenticated, "Authentication required")
	}

	channelUUID = models.NormalizeUUID(channelUUID)
	if err := h.resolver.RequireChannelAccess(subject, channelUUID); err != nil {
		return err
	}

	participant, err := h.participants.GetParticipant(r.Context(), channelUUID, subject.ID)
	if err != nil {
		return err
	}
	if participant.EphemeralPushToken == nil {
		return errs.New(errs.KindForbidden, "A registered push token is required to stream")
	}

	channelAgent, err := h.registry.Get(r.Context(), channelUUID)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		return nil
	}

	conn := newConn(h, channelAgent, ws, channelUUID, subject.ID, participant.Username)

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	metrics.StreamConnections.Inc()

	if err := channelAgent.Subscribe(r.Context(), subject.ID, conn); err != nil {
		h.drop(conn)
		conn.close(websocket.CloseInternalServerErr, "subscription failed")
		return nil
	}

	conn.start()

	logging.Ctx(r.Context()).Info().
		Str("channel", channelUUID).
		Str("user", subject.ID).
		Msg("stream subscriber connected")
	return nil
}

// drop removes a connection from the hub's tracking set.
func (h *Hub) drop(conn *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		metrics.StreamConnections.Dec()
	}
	h.mu.Unlock()
}

// ConnectionCount returns the number of live stream connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every connection. Called during graceful server stop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.close(websocket.CloseGoingAway, "server shutting down")
	}
}
