// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/parawave/config.yaml",
	"/etc/parawave/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML (if present)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive through env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars come in as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return "" and are skipped, preventing unrelated environment
// variables from polluting the config.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - AUTH_ISSUER_URL -> auth.issuer_url
//   - CACHE_TTL -> cache.ttl
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":           "server.port",
		"http_host":           "server.host",
		"http_timeout":        "server.timeout",
		"public_host":         "server.public_host",
		"cors_origin":         "server.cors_origins",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_requests",
		"rate_limit_window":   "server.rate_limit_window",
		"disable_rate_limit":  "server.rate_limit_disabled",

		// Identity provider mappings
		"auth_issuer_url":         "auth.issuer_url",
		"auth_audience":           "auth.audience",
		"auth_jwks_url":           "auth.jwks_url",
		"auth_jwks_cache_ttl":     "auth.jwks_cache_ttl",
		"auth_mgmt_client_id":     "auth.mgmt_client_id",
		"auth_mgmt_client_secret": "auth.mgmt_client_secret",

		// Permission mappings
		"read_permission":          "auth.read_permission",
		"write_permission":         "auth.write_permission",
		"admin_permission":         "auth.admin_permission",
		"tenant_admin_permission":  "auth.tenant_admin_permission",
		"access_permission_prefix": "auth.access_permission_prefix",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Cache mappings
		"cache_path":     "cache.path",
		"cache_ttl":      "cache.ttl",
		"cache_list_ttl": "cache.list_ttl",

		// Push gateway mappings
		"push_gateway_url":     "push.url",
		"push_gateway_key_id":  "push.key_id",
		"push_gateway_team_id": "push.team_id",
		"push_gateway_timeout": "push.timeout",

		// PTT policy mappings
		"ptt_max_transmission_duration": "ptt.max_transmission_duration",
		"ptt_participant_timeout":       "ptt.participant_timeout",
		"ptt_default_max_participants":  "ptt.default_max_participants",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
