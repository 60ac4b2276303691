// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid", New(KindInvalid, "bad"), KindInvalid},
		{"conflict", New(KindConflict, "busy"), KindConflict},
		{"wrapped", fmt.Errorf("outer: %w", New(KindNotFound, "missing")), KindNotFound},
		{"plain error", errors.New("boom"), KindUnavailable},
		{"nil cause wrap", Wrap(KindTimeout, "deadline", nil), KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusBadRequest},
		{KindInvalid, http.StatusBadRequest},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := HTTPStatus(New(tt.kind, "x")); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorMessageHidesCauseFromClient(t *testing.T) {
	cause := errors.New("connection refused 10.0.0.5:5432")
	err := Wrap(KindUnavailable, "failed to read channel", cause)

	if err.Message != "failed to read channel" {
		t.Errorf("client message leaked internals: %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(KindInvalid, "Invalid chunk sequence. Expected 3").
		WithDetails(map[string]interface{}{"expected_sequence": 3})

	if err.Details["expected_sequence"] != 3 {
		t.Errorf("details not retained: %v", err.Details)
	}
}
