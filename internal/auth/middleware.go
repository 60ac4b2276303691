// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package auth

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// CredentialFromRequest extracts the bearer credential from a request.
// The Authorization header is preferred; the `token` query parameter is
// accepted identically because browser WebSocket clients cannot set headers
// on the upgrade request.
func CredentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Authenticate returns middleware that verifies the request credential and
// stores the resulting subject in the request context. Requests without a
// valid credential receive 401 with the standard envelope.
func (v *Verifier) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := v.Verify(r.Context(), CredentialFromRequest(r))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(models.NewErrorResponse("Authentication required"))
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAuthSubject(r.Context(), subject)))
	})
}
