// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package authz answers authorization questions over a verified subject's
// scope set.
//
// Canonical scopes: read:api, write:api, admin:api, tenant:admin, and the
// per-channel access:{uuid} form. Scope suffixes after the access prefix are
// lowercased on ingest so that channel access checks are always
// lowercase-to-lowercase, regardless of how the identity provider or client
// cased the UUID.
package authz

import (
	"strings"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// Resolver normalizes scope strings and answers permission queries.
type Resolver struct {
	readScope    string
	writeScope   string
	adminScope   string
	tenantScope  string
	accessPrefix string
}

// NewResolver creates a resolver with the configured scope names.
func NewResolver(cfg *config.AuthConfig) *Resolver {
	return &Resolver{
		readScope:    cfg.ReadPermission,
		writeScope:   cfg.WritePermission,
		adminScope:   cfg.AdminPermission,
		tenantScope:  cfg.TenantAdminPermission,
		accessPrefix: cfg.AccessPermissionPrefix,
	}
}

// Normalize returns the subject's scopes with every access-scope suffix
// lowercased. Other scopes pass through unchanged.
func (r *Resolver) Normalize(scopes []string) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		if strings.HasPrefix(s, r.accessPrefix) {
			out[i] = r.accessPrefix + strings.ToLower(s[len(r.accessPrefix):])
		} else {
			out[i] = s
		}
	}
	return out
}

// has reports whether the normalized scope set contains scope.
func (r *Resolver) has(subject *auth.AuthSubject, scope string) bool {
	if subject == nil {
		return false
	}
	for _, s := range r.Normalize(subject.Scopes) {
		if s == scope {
			return true
		}
	}
	return false
}

// CanRead reports whether the subject may read the API.
func (r *Resolver) CanRead(subject *auth.AuthSubject) bool {
	return r.has(subject, r.readScope) || r.CanAdmin(subject)
}

// CanWrite reports whether the subject may mutate channels.
func (r *Resolver) CanWrite(subject *auth.AuthSubject) bool {
	return r.has(subject, r.writeScope) || r.CanAdmin(subject)
}

// CanAdmin reports whether the subject holds the admin scope.
func (r *Resolver) CanAdmin(subject *auth.AuthSubject) bool {
	return r.has(subject, r.adminScope)
}

// CanManageTenant reports whether the subject holds the tenant admin scope.
func (r *Resolver) CanManageTenant(subject *auth.AuthSubject) bool {
	return r.has(subject, r.tenantScope)
}

// CanAccessChannel reports whether the subject may join, stream on, or
// transmit in the channel: admin scope, or the channel's access scope.
// The UUID is lowercased before comparison.
func (r *Resolver) CanAccessChannel(subject *auth.AuthSubject, channelUUID string) bool {
	if r.CanAdmin(subject) {
		return true
	}
	return r.has(subject, r.accessPrefix+models.NormalizeUUID(channelUUID))
}

// AccessScope returns the access scope string for a channel UUID,
// lowercased.
func (r *Resolver) AccessScope(channelUUID string) string {
	return r.accessPrefix + models.NormalizeUUID(channelUUID)
}

// RequireRead returns a Forbidden error unless the subject may read.
func (r *Resolver) RequireRead(subject *auth.AuthSubject) error {
	if !r.CanRead(subject) {
		return errs.New(errs.KindForbidden, "Read permission required")
	}
	return nil
}

// RequireWrite returns a Forbidden error unless the subject may write.
func (r *Resolver) RequireWrite(subject *auth.AuthSubject) error {
	if !r.CanWrite(subject) {
		return errs.New(errs.KindForbidden, "Write permission required")
	}
	return nil
}

// RequireAdmin returns a Forbidden error unless the subject is an admin.
func (r *Resolver) RequireAdmin(subject *auth.AuthSubject) error {
	if !r.CanAdmin(subject) {
		return errs.New(errs.KindForbidden, "Admin permission required")
	}
	return nil
}

// RequireChannelAccess returns a Forbidden error unless the subject may
// access the channel.
func (r *Resolver) RequireChannelAccess(subject *auth.AuthSubject, channelUUID string) error {
	if !r.CanAccessChannel(subject, channelUUID) {
		return errs.New(errs.KindForbidden, "Channel access permission required")
	}
	return nil
}
