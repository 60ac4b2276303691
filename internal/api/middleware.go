// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// ChiMiddlewareConfig holds configuration for the Chi middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// ChiMiddleware provides Chi-compatible middleware built on the
// production-hardened go-chi ecosystem implementations.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &ChiMiddleware{config: config, cors: corsHandler}
}

// CORS returns the middleware pair enforcing the origin allow-list: a
// disallowed origin is rejected with 403 and the literal body
// "CORS policy violation"; allowed origins flow through go-chi/cors for
// headers and preflight handling.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		inner := m.cors(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !m.originAllowed(origin) {
				logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("request rejected by CORS policy")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("CORS policy violation"))
				return
			}
			inner.ServeHTTP(w, r)
		})
	}
}

// originAllowed checks the configured allow-list; "*" allows any origin.
func (m *ChiMiddleware) originAllowed(origin string) bool {
	for _, allowed := range m.config.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// RateLimit returns per-IP rate limiting via go-chi/httprate. Breaches
// receive 429 with the standard envelope.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusTooManyRequests, models.NewErrorResponse("Rate limit exceeded"))
		}),
	)
}
