// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package store

import "context"

// schemaStatements creates the four tables and their indexes. Statements are
// idempotent so the store can reopen an existing database file.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT,
		lat DOUBLE,
		lon DOUBLE,
		radius_km DOUBLE NOT NULL DEFAULT 50,
		vhf_frequency TEXT,
		max_participants INTEGER NOT NULL DEFAULT 50,
		difficulty TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		updated_at TIMESTAMP,
		updated_by TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS channel_participants (
		channel_uuid TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		join_time TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		location_lat DOUBLE,
		location_lon DOUBLE,
		location_altitude DOUBLE,
		location_accuracy DOUBLE,
		connection_quality TEXT NOT NULL DEFAULT 'good',
		is_transmitting BOOLEAN NOT NULL DEFAULT FALSE,
		ephemeral_push_token TEXT,
		device_os TEXT,
		device_os_version TEXT,
		device_app_version TEXT,
		device_user_agent TEXT,
		PRIMARY KEY (channel_uuid, user_id)
	)`,

	`CREATE SEQUENCE IF NOT EXISTS channel_messages_id_seq`,

	`CREATE TABLE IF NOT EXISTS channel_messages (
		id BIGINT PRIMARY KEY DEFAULT nextval('channel_messages_id_seq'),
		channel_uuid TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		event_type TEXT NOT NULL,
		content TEXT,
		metadata TEXT,
		timestamp TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS transmission_history (
		session_id TEXT PRIMARY KEY,
		channel_uuid TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP,
		duration_ms BIGINT,
		audio_format TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		bitrate INTEGER,
		network_quality TEXT,
		chunks_received INTEGER NOT NULL DEFAULT 0,
		total_bytes BIGINT NOT NULL DEFAULT 0,
		end_reason TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_channel_messages_timestamp
		ON channel_messages (timestamp)`,

	`CREATE INDEX IF NOT EXISTS idx_channel_participants_last_seen
		ON channel_participants (last_seen)`,

	`CREATE INDEX IF NOT EXISTS idx_transmission_history_channel_start
		ON transmission_history (channel_uuid, start_time)`,
}

// initSchema applies the schema statements in order.
func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
