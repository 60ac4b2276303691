// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package errs defines the typed error kinds shared by all components.
//
// Components return *Error values (or wrap them); the API layer maps kinds
// to HTTP status codes and the response envelope. Classification survives
// wrapping: use KindOf on any error chain.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// KindUnavailable is the zero value: store/cache/gateway failures and
	// anything unclassified.
	KindUnavailable Kind = iota

	// KindUnauthenticated covers missing or invalid credentials.
	KindUnauthenticated

	// KindForbidden covers scope or permission mismatches.
	KindForbidden

	// KindNotFound covers unknown channels and sessions.
	KindNotFound

	// KindConflict covers duplicate UUIDs, full channels, and busy transmitters.
	KindConflict

	// KindInvalid covers malformed bodies, bad UUIDs/frequencies/coordinates,
	// bad base64, and wrong chunk sequences or sizes.
	KindInvalid

	// KindTimeout covers exceeded operation deadlines. The transmission
	// duration cap ends the session with reason timeout instead of
	// returning this kind.
	KindTimeout
)

// String returns the kind name used in logs and error details.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	case KindTimeout:
		return "timeout"
	default:
		return "unavailable"
	}
}

// Error is a typed error carrying a kind, a client-facing message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a typed error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error wrapping a cause. The cause is not exposed in
// the client-facing message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured details surfaced in the error envelope.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// KindOf classifies any error. Unrecognized errors (including nil chains
// without an *Error) report KindUnavailable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// HTTPStatus maps an error kind to the HTTP status code the Control API
// surfaces. Conflict maps to 400 on every endpoint: busy transmitters, full
// channels, and duplicate UUIDs on create are all surfaced as bad requests.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusBadRequest
	case KindInvalid:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
