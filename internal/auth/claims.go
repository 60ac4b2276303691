// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package auth verifies bearer credentials against the identity provider's
// remote key set and exposes the resulting claim set to the rest of the
// server.
package auth

import "context"

// AuthSubject is the verified identity extracted from a bearer credential:
// the token subject, its scope strings, and display claims.
type AuthSubject struct {
	// ID is the token subject (`sub`).
	ID string

	// Username is the best display name found in the token claims
	// (preferred_username, then nickname, then name, then email, then the
	// subject).
	Username string

	// Scopes are the raw capability strings from the token. The authz
	// package normalizes and interprets them.
	Scopes []string
}

// HasScope reports whether the subject carries the exact scope string.
func (s *AuthSubject) HasScope(scope string) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

type subjectContextKey struct{}

// ContextWithAuthSubject stores the verified subject in the context.
func ContextWithAuthSubject(ctx context.Context, subject *AuthSubject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// GetAuthSubject retrieves the verified subject from the context.
// Returns nil for unauthenticated requests.
func GetAuthSubject(ctx context.Context) *AuthSubject {
	if subject, ok := ctx.Value(subjectContextKey{}).(*AuthSubject); ok {
		return subject
	}
	return nil
}
