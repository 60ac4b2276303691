// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"fmt"
	"net/http"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// serverVersion is reported by the health endpoint.
const serverVersion = "1.0.0"

// Health handles GET /health with per-dependency status. The endpoint is
// unauthenticated so orchestrators can probe it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"database": "healthy",
		"cache":    "healthy",
		"channels": fmt.Sprintf("%d active", h.registry.Count()),
	}

	status := "healthy"
	if err := h.store.Ping(r.Context()); err != nil {
		services["database"] = "unhealthy"
		status = "degraded"
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		// Cache loss degrades to direct store reads; the service stays up
		services["cache"] = "unhealthy"
		if status == "healthy" {
			status = "degraded"
		}
	}

	httpStatus := http.StatusOK
	if services["database"] == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, httpStatus, models.NewSuccessResponse(models.HealthResponse{
		Status:     status,
		Services:   services,
		Version:    serverVersion,
		APIVersion: "v1",
	}))
}
