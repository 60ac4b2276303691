// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
)

// usernameClaims lists the display-name claims tried in order before falling
// back to the token subject.
var usernameClaims = []string{"preferred_username", "nickname", "name", "email"}

// Verifier validates bearer credentials: signature against the remote key
// set, issuer, audience, and expiry. Every failure surfaces as the same
// Unauthenticated error so callers cannot probe which check failed; the
// specific cause is logged server-side only.
type Verifier struct {
	jwks     *JWKSCache
	issuer   string
	audience string
}

// NewVerifier creates a verifier for the configured identity provider.
func NewVerifier(cfg *config.AuthConfig) *Verifier {
	return &Verifier{
		jwks:     NewJWKSCache(cfg.JWKSEndpoint(), nil, cfg.JWKSCacheTTL),
		issuer:   strings.TrimSuffix(cfg.IssuerURL, "/") + "/",
		audience: cfg.Audience,
	}
}

// NewVerifierWithJWKS creates a verifier with an explicit key cache.
// Used by tests that stub the JWKS endpoint.
func NewVerifierWithJWKS(jwks *JWKSCache, issuer, audience string) *Verifier {
	return &Verifier{jwks: jwks, issuer: issuer, audience: audience}
}

// errUnauthenticated is the single client-facing authentication failure.
func errUnauthenticated() *errs.Error {
	return errs.New(errs.KindUnauthenticated, "Authentication required")
}

// Verify validates a raw compact JWT and returns the verified subject.
func (v *Verifier) Verify(ctx context.Context, raw string) (*AuthSubject, error) {
	if raw == "" {
		return nil, errUnauthenticated()
	}

	keyfunc := func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.jwks.GetKey(ctx, kid)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("token verification failed")
		return nil, errUnauthenticated()
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		logging.Ctx(ctx).Debug().Msg("token has no subject")
		return nil, errUnauthenticated()
	}

	return &AuthSubject{
		ID:       sub,
		Username: displayName(claims, sub),
		Scopes:   extractScopes(claims),
	}, nil
}

// extractScopes collects capability strings from the claim set. Both the
// space-separated `scope` claim and the `permissions` array claim are
// honored; duplicates are removed.
func extractScopes(claims jwt.MapClaims) []string {
	seen := make(map[string]struct{})
	var scopes []string

	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}

	if scope, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(scope) {
			add(s)
		}
	}
	if perms, ok := claims["permissions"].([]interface{}); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				add(s)
			}
		}
	}

	return scopes
}

// displayName picks the best display name from the claim set.
func displayName(claims jwt.MapClaims, fallback string) string {
	for _, claim := range usernameClaims {
		if name, ok := claims[claim].(string); ok && name != "" {
			return name
		}
	}
	return fallback
}
