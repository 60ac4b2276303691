// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package store

import (
	"context"
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// InsertTransmissionStart writes the history row for a starting
// transmission. The owning agent awaits this write before broadcasting
// transmission_started, so a visible transmission always has a history row.
func (s *Store) InsertTransmissionStart(ctx context.Context, session *models.TransmissionSession) error {
	defer observe("insert_transmission", time.Now())

	_, err := s.conn.ExecContext(ctx, `INSERT INTO transmission_history (
		session_id, channel_uuid, user_id, username, start_time,
		audio_format, sample_rate, bitrate, network_quality
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.ChannelUUID, session.UserID, session.Username,
		session.StartTime, string(session.AudioFormat), session.SampleRate,
		session.Bitrate, string(session.NetworkQuality))
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to record transmission start", err)
	}
	return nil
}

// CompleteTransmission finalizes a history row with the end time, measured
// duration, chunk/byte totals, and the end reason (completed, timeout,
// shutdown, error).
func (s *Store) CompleteTransmission(ctx context.Context, sessionID string, endTime time.Time,
	durationMS int64, chunksReceived int, totalBytes int64, reason string,
) error {
	defer observe("complete_transmission", time.Now())

	res, err := s.conn.ExecContext(ctx, `UPDATE transmission_history SET
		end_time = ?, duration_ms = ?, chunks_received = ?, total_bytes = ?, end_reason = ?
	WHERE session_id = ?`,
		endTime, durationMS, chunksReceived, totalBytes, reason, sessionID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to record transmission end", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, "Transmission session not found")
	}
	return nil
}
