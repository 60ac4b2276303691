// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package api exposes the versioned HTTP surface of the PTT server using
// the Chi router: channel CRUD, membership, transmissions, the stream
// upgrade, and health.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// respondJSON writes the envelope with the given status.
func respondJSON(w http.ResponseWriter, status int, body models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondSuccess writes a 200 success envelope around data.
func respondSuccess(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, models.NewSuccessResponse(data))
}

// respondCreated writes a 201 success envelope around data.
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, models.NewSuccessResponse(data))
}

// respondError maps a typed error to its status code and envelope. Internal
// failures are masked with a generic message; their cause is logged.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		message = "Internal server error"
	}

	respondJSON(w, status, models.NewErrorResponse(message))
}

// respondInvalid writes a 400 with the given message.
func respondInvalid(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, models.NewErrorResponse(message))
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errs.New(errs.KindInvalid, "Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.New(errs.KindInvalid, "Malformed JSON body")
	}
	return nil
}
