// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/middleware"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// Router assembles the HTTP surface.
type Router struct {
	handler       *Handler
	verifier      *auth.Verifier
	chiMiddleware *ChiMiddleware
}

// NewRouter creates the router from its middleware and handler parts.
func NewRouter(handler *Handler, verifier *auth.Verifier, chiMw *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		verifier:      verifier,
		chiMiddleware: chiMw,
	}
}

// Setup configures all routes on a Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// Unknown routes answer with the standard envelope
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed"))
	})

	// Operational endpoints outside the versioned API
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", router.handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		// Health is unauthenticated and rate limiting stays permissive for
		// monitoring probes
		r.Get("/health", router.handler.Health)

		// Channel CRUD
		r.Route("/channels", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(router.verifier.Authenticate)

			r.Get("/", router.handler.ListChannels)
			r.Post("/", router.handler.CreateChannel)
			r.Post("/with-uuid", router.handler.CreateChannelWithUUID)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", router.handler.GetChannel)
				r.Put("/", router.handler.UpdateChannel)
				r.Delete("/", router.handler.DeleteChannel)

				r.Post("/join", router.handler.JoinChannel)
				r.Post("/leave", router.handler.LeaveChannel)
				r.Delete("/leave", router.handler.LeaveChannel)
				r.Get("/participants", router.handler.GetParticipants)
				r.Put("/update-token", router.handler.UpdateToken)
				r.Post("/update-token", router.handler.UpdateToken)
			})
		})

		// Transmissions
		r.Route("/transmissions", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(router.verifier.Authenticate)

			r.Post("/start", router.handler.StartTransmission)
			r.Post("/{session_id}/chunk", router.handler.TransmitChunk)
			r.Post("/{session_id}/end", router.handler.EndTransmission)
			r.Get("/active/{channel_uuid}", router.handler.ActiveTransmission)

			// Stream upgrade: the credential may arrive as ?token=, which
			// Authenticate accepts identically to the header
			r.Get("/ws/{channel_uuid}", router.handler.StreamUpgrade)
		})
	})

	return r
}
