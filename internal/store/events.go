// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// LogEvent appends one entry to the channel's event log. Logging is
// best-effort: a failed append is logged server-side and never fails the
// operation that produced the event.
//
// channel_hard_deleted events are suppressed — the hard-delete cascade
// would remove the row in the same transaction.
func (s *Store) LogEvent(ctx context.Context, channelUUID, userID, username string,
	eventType models.EventType, content string, metadata map[string]interface{},
) {
	if eventType == "channel_hard_deleted" {
		return
	}

	var metaJSON interface{}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err == nil {
			metaJSON = string(b)
		}
	}

	_, err := s.conn.ExecContext(ctx, `INSERT INTO channel_messages (
		channel_uuid, user_id, username, event_type, content, metadata, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		models.NormalizeUUID(channelUUID), userID, username, string(eventType),
		nullIfEmpty(content), metaJSON, time.Now().UTC())
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("channel", channelUUID).
			Str("event_type", string(eventType)).
			Msg("failed to append channel event")
	}
}

// GetEvents lists a channel's event log, newest first, bounded by limit.
func (s *Store) GetEvents(ctx context.Context, channelUUID string, limit int) ([]models.ChannelEvent, error) {
	defer observe("get_events", time.Now())

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT
		id, channel_uuid, user_id, username, event_type, content, metadata, timestamp
	FROM channel_messages WHERE channel_uuid = ?
	ORDER BY timestamp DESC, id DESC LIMIT ?`,
		models.NormalizeUUID(channelUUID), limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to list events", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.ChannelEvent
	for rows.Next() {
		var ev models.ChannelEvent
		var content, metaJSON sql.NullString
		var eventType string
		if err := rows.Scan(&ev.ID, &ev.ChannelUUID, &ev.UserID, &ev.Username,
			&eventType, &content, &metaJSON, &ev.Timestamp); err != nil {
			return nil, errs.Wrap(errs.KindUnavailable, "failed to scan event", err)
		}
		ev.EventType = models.EventType(eventType)
		ev.Content = content.String
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &ev.Metadata)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
