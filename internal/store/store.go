// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package store is the durable channel store: channels, participants, the
// append-only channel event log, and transmission history, persisted in
// DuckDB.
//
// The store exclusively owns durable records. Channel agents hold live
// session state and read through this package; the channel cache holds
// non-authoritative copies invalidated by every mutating call here before
// it returns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/metrics"
)

// Invalidator is the cache coherency hook. Mutating store operations call
// it before returning success so readers never observe a stale entry after
// a write acknowledged to the client.
type Invalidator interface {
	InvalidateChannel(ctx context.Context, uuid string)
	InvalidateList(ctx context.Context)
}

// IntentPublisher receives channel lifecycle intents for the permission
// registrar. Publishing is best-effort; failures never fail the store
// operation.
type IntentPublisher interface {
	ChannelCreated(uuid, name string)
	ChannelUpdated(uuid, name string)
	ChannelHardDeleted(uuid string)
}

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB

	// defaultMaxParticipants applies when a create request omits the limit.
	defaultMaxParticipants int

	cache   Invalidator
	intents IntentPublisher
}

// New opens (or creates) the DuckDB database at cfg.Path and initializes
// the schema. defaultMaxParticipants applies to channels created without an
// explicit limit.
func New(cfg *config.DatabaseConfig, defaultMaxParticipants int) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for the database file
	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		conn:                   conn,
		defaultMaxParticipants: defaultMaxParticipants,
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("channel store opened")
	return s, nil
}

// NewInMemory opens an in-memory store for tests.
func NewInMemory(defaultMaxParticipants int) (*Store, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	s := &Store{
		conn:                   conn,
		defaultMaxParticipants: defaultMaxParticipants,
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// SetCache attaches the cache invalidation hook. Nil-safe: the store works
// without a cache.
func (s *Store) SetCache(cache Invalidator) {
	s.cache = cache
}

// SetIntentPublisher attaches the registrar intent hook.
func (s *Store) SetIntentPublisher(p IntentPublisher) {
	s.intents = p
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies database liveness for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// invalidate drops both cache keys for a channel mutation. Called before
// the mutating operation returns.
func (s *Store) invalidate(ctx context.Context, uuid string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateChannel(ctx, uuid)
	s.cache.InvalidateList(ctx)
}

// observe records a store query duration metric.
func observe(operation string, start time.Time) {
	metrics.RecordStoreQuery(operation, time.Since(start))
}
