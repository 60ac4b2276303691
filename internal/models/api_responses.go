// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package models

import "time"

// APIVersion is the version string carried in every response envelope.
const APIVersion = "1.0.0"

// APIResponse is the envelope wrapping every /api/v1 response body.
//
// Example success:
//
//	{
//	  "success": true,
//	  "data": {"uuid": "...", "name": "Chamonix"},
//	  "timestamp": "2026-03-14T09:30:00Z",
//	  "version": "1.0.0"
//	}
//
// Example failure:
//
//	{
//	  "success": false,
//	  "error": "Invalid chunk sequence. Expected 3",
//	  "timestamp": "2026-03-14T09:30:00Z",
//	  "version": "1.0.0"
//	}
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
}

// NewSuccessResponse builds a success envelope around data.
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Version:   APIVersion,
	}
}

// NewErrorResponse builds a failure envelope with a client-facing message.
func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
		Version:   APIVersion,
	}
}
