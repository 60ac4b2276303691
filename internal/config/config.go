// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package config provides layered configuration for the ParaWave PTT server
// using Koanf v2: built-in defaults, then an optional YAML config file, then
// environment variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Push     PushConfig     `koanf:"push"`
	PTT      PTTConfig      `koanf:"ptt"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener and transport policy settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins is the allow-list checked on every request and websocket
	// upgrade. "*" allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// PublicHost is the externally visible host used when building
	// websocket URLs for clients. Falls back to the request Host header
	// when empty.
	PublicHost string `koanf:"public_host"`
}

// AuthConfig holds identity-provider settings: token verification inputs
// and the management API credentials the permission registrar uses.
type AuthConfig struct {
	IssuerURL    string        `koanf:"issuer_url"`
	Audience     string        `koanf:"audience"`
	JWKSURL      string        `koanf:"jwks_url"`
	JWKSCacheTTL time.Duration `koanf:"jwks_cache_ttl"`

	// Management API credentials for the permission registrar. The
	// registrar is disabled when the client ID is empty.
	MgmtClientID     string `koanf:"mgmt_client_id"`
	MgmtClientSecret string `koanf:"mgmt_client_secret"`

	ReadPermission         string `koanf:"read_permission"`
	WritePermission        string `koanf:"write_permission"`
	AdminPermission        string `koanf:"admin_permission"`
	TenantAdminPermission  string `koanf:"tenant_admin_permission"`
	AccessPermissionPrefix string `koanf:"access_permission_prefix"`
}

// DatabaseConfig holds DuckDB settings for the channel store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB worker count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// CacheConfig holds the Badger-backed channel cache settings.
type CacheConfig struct {
	// Path is the Badger directory. Empty selects an in-memory instance,
	// used by tests.
	Path string `koanf:"path"`

	// TTL bounds single-channel entries; ListTTL bounds the list snapshot.
	TTL     time.Duration `koanf:"ttl"`
	ListTTL time.Duration `koanf:"list_ttl"`
}

// PushConfig holds push-notification gateway settings. Fan-out is disabled
// when URL is empty.
type PushConfig struct {
	URL     string        `koanf:"url"`
	KeyID   string        `koanf:"key_id"`
	TeamID  string        `koanf:"team_id"`
	Timeout time.Duration `koanf:"timeout"`
}

// PTTConfig holds transmission and roster policy knobs.
type PTTConfig struct {
	MaxTransmissionDuration time.Duration `koanf:"max_transmission_duration"`
	ParticipantTimeout      time.Duration `koanf:"participant_timeout"`
	DefaultMaxParticipants  int           `koanf:"default_max_participants"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8090,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Auth: AuthConfig{
			JWKSCacheTTL:           15 * time.Minute,
			ReadPermission:         "read:api",
			WritePermission:        "write:api",
			AdminPermission:        "admin:api",
			TenantAdminPermission:  "tenant:admin",
			AccessPermissionPrefix: "access:",
		},
		Database: DatabaseConfig{
			Path:      "/data/parawave.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Cache: CacheConfig{
			Path:    "/data/cache",
			TTL:     300 * time.Second,
			ListTTL: 30 * time.Second,
		},
		Push: PushConfig{
			Timeout: 10 * time.Second,
		},
		PTT: PTTConfig{
			MaxTransmissionDuration: 30 * time.Second,
			ParticipantTimeout:      300 * time.Second,
			DefaultMaxParticipants:  50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for internally inconsistent or
// out-of-range values. Called by LoadWithKoanf after unmarshaling.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Auth.IssuerURL == "" {
		return fmt.Errorf("auth.issuer_url is required (AUTH_ISSUER_URL)")
	}
	if _, err := url.Parse(c.Auth.IssuerURL); err != nil {
		return fmt.Errorf("auth.issuer_url is not a valid URL: %w", err)
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth.audience is required (AUTH_AUDIENCE)")
	}
	if c.Auth.AccessPermissionPrefix == "" {
		return fmt.Errorf("auth.access_permission_prefix must not be empty")
	}
	if c.Cache.TTL <= 0 || c.Cache.ListTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.PTT.MaxTransmissionDuration <= 0 {
		return fmt.Errorf("ptt.max_transmission_duration must be positive")
	}
	if c.PTT.ParticipantTimeout <= 0 {
		return fmt.Errorf("ptt.participant_timeout must be positive")
	}
	if c.PTT.DefaultMaxParticipants < 1 || c.PTT.DefaultMaxParticipants > 100 {
		return fmt.Errorf("ptt.default_max_participants must be in [1, 100], got %d", c.PTT.DefaultMaxParticipants)
	}
	return nil
}

// JWKSEndpoint returns the configured JWKS URL, deriving the conventional
// {issuer}/.well-known/jwks.json location when unset.
func (c *AuthConfig) JWKSEndpoint() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return strings.TrimSuffix(c.IssuerURL, "/") + "/.well-known/jwks.json"
}
