// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// JoinChannel adds the user to the channel or, when the (channel, user) pair
// already exists, refreshes last_seen, location, push token, and device info
// and returns the refreshed row (idempotent join). The returned bool is true
// when a new membership row was inserted.
//
// The max_participants limit is enforced only for genuinely new joins; a
// refresh never changes the participant count.
func (s *Store) JoinChannel(ctx context.Context, channelUUID, userID, username string,
	location *models.ParticipantLocation, pushToken string, deviceInfo *models.DeviceInfo,
) (*models.Participant, bool, error) {
	defer observe("join_channel", time.Now())

	channelUUID = models.NormalizeUUID(channelUUID)

	ch, err := s.GetChannel(ctx, channelUUID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.GetParticipant(ctx, channelUUID, userID)
	if err != nil && !errs.IsKind(err, errs.KindNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()

	if existing != nil {
		// Idempotent re-join: refresh the live fields in place
		var lat, lon, alt, acc interface{}
		if location != nil {
			lat, lon = location.Lat, location.Lon
			if location.Altitude != nil {
				alt = *location.Altitude
			}
			if location.Accuracy != nil {
				acc = *location.Accuracy
			}
		} else if existing.Location != nil {
			lat, lon = existing.Location.Lat, existing.Location.Lon
			if existing.Location.Altitude != nil {
				alt = *existing.Location.Altitude
			}
			if existing.Location.Accuracy != nil {
				acc = *existing.Location.Accuracy
			}
		}

		token := pushToken
		if token == "" && existing.EphemeralPushToken != nil {
			token = *existing.EphemeralPushToken
		}

		dev := deviceInfo
		if dev == nil {
			dev = existing.DeviceInfo
		}
		var devOS, devOSVer, devApp, devUA interface{}
		if dev != nil {
			devOS = nullIfEmpty(dev.OS)
			devOSVer = nullIfEmpty(dev.OSVersion)
			devApp = nullIfEmpty(dev.AppVersion)
			devUA = nullIfEmpty(dev.UserAgent)
		}

		_, err = s.conn.ExecContext(ctx, `UPDATE channel_participants SET
			username = ?, last_seen = ?, location_lat = ?, location_lon = ?,
			location_altitude = ?, location_accuracy = ?, ephemeral_push_token = ?,
			device_os = ?, device_os_version = ?, device_app_version = ?, device_user_agent = ?
		WHERE channel_uuid = ? AND user_id = ?`,
			username, now, lat, lon, alt, acc, nullIfEmpty(token),
			devOS, devOSVer, devApp, devUA, channelUUID, userID)
		if err != nil {
			return nil, false, errs.Wrap(errs.KindUnavailable, "failed to refresh participant", err)
		}

		s.invalidate(ctx, channelUUID)
		p, err := s.GetParticipant(ctx, channelUUID, userID)
		return p, false, err
	}

	count, err := s.CountParticipants(ctx, channelUUID)
	if err != nil {
		return nil, false, err
	}
	if count >= ch.MaxParticipants {
		return nil, false, errChannelFull()
	}

	var lat, lon, alt, acc interface{}
	if location != nil {
		lat, lon = location.Lat, location.Lon
		if location.Altitude != nil {
			alt = *location.Altitude
		}
		if location.Accuracy != nil {
			acc = *location.Accuracy
		}
	}
	var devOS, devOSVer, devApp, devUA interface{}
	if deviceInfo != nil {
		devOS = nullIfEmpty(deviceInfo.OS)
		devOSVer = nullIfEmpty(deviceInfo.OSVersion)
		devApp = nullIfEmpty(deviceInfo.AppVersion)
		devUA = nullIfEmpty(deviceInfo.UserAgent)
	}

	_, err = s.conn.ExecContext(ctx, `INSERT INTO channel_participants (
		channel_uuid, user_id, username, join_time, last_seen,
		location_lat, location_lon, location_altitude, location_accuracy,
		connection_quality, is_transmitting, ephemeral_push_token,
		device_os, device_os_version, device_app_version, device_user_agent
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?, ?, ?, ?)`,
		channelUUID, userID, username, now, now, lat, lon, alt, acc,
		string(models.QualityGood), nullIfEmpty(pushToken),
		devOS, devOSVer, devApp, devUA)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindUnavailable, "failed to join channel", err)
	}

	s.LogEvent(ctx, channelUUID, userID, username, models.EventUserJoined, "", nil)
	s.invalidate(ctx, channelUUID)

	logging.Ctx(ctx).Info().Str("channel", channelUUID).Str("user", userID).Msg("participant joined")

	p, err := s.GetParticipant(ctx, channelUUID, userID)
	return p, true, err
}

// LeaveChannel removes the (channel, user) membership row.
func (s *Store) LeaveChannel(ctx context.Context, channelUUID, userID, username string) error {
	defer observe("leave_channel", time.Now())

	channelUUID = models.NormalizeUUID(channelUUID)

	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM channel_participants WHERE channel_uuid = ? AND user_id = ?",
		channelUUID, userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to leave channel", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotParticipant()
	}

	s.LogEvent(ctx, channelUUID, userID, username, models.EventUserLeft, "", nil)
	s.invalidate(ctx, channelUUID)
	return nil
}

// GetParticipant fetches one membership row.
func (s *Store) GetParticipant(ctx context.Context, channelUUID, userID string) (*models.Participant, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT
		channel_uuid, user_id, username, join_time, last_seen,
		location_lat, location_lon, location_altitude, location_accuracy,
		connection_quality, is_transmitting, ephemeral_push_token,
		device_os, device_os_version, device_app_version, device_user_agent
	FROM channel_participants WHERE channel_uuid = ? AND user_id = ?`,
		models.NormalizeUUID(channelUUID), userID)

	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotParticipant()
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to read participant", err)
	}
	return p, nil
}

// GetParticipants lists the channel's membership ordered by join time.
func (s *Store) GetParticipants(ctx context.Context, channelUUID string) ([]models.Participant, error) {
	defer observe("get_participants", time.Now())

	rows, err := s.conn.QueryContext(ctx, `SELECT
		channel_uuid, user_id, username, join_time, last_seen,
		location_lat, location_lon, location_altitude, location_accuracy,
		connection_quality, is_transmitting, ephemeral_push_token,
		device_os, device_os_version, device_app_version, device_user_agent
	FROM channel_participants WHERE channel_uuid = ?
	ORDER BY join_time, user_id`, models.NormalizeUUID(channelUUID))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to list participants", err)
	}
	defer func() { _ = rows.Close() }()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindUnavailable, "failed to scan participant", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// CountParticipants returns the channel's current membership count.
func (s *Store) CountParticipants(ctx context.Context, channelUUID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM channel_participants WHERE channel_uuid = ?",
		models.NormalizeUUID(channelUUID)).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.KindUnavailable, "failed to count participants", err)
	}
	return count, nil
}

// UpdateParticipantPushToken refreshes the ephemeral push token and
// last_seen.
func (s *Store) UpdateParticipantPushToken(ctx context.Context, channelUUID, userID, token string) error {
	defer observe("update_push_token", time.Now())

	res, err := s.conn.ExecContext(ctx, `UPDATE channel_participants
		SET ephemeral_push_token = ?, last_seen = ?
		WHERE channel_uuid = ? AND user_id = ?`,
		nullIfEmpty(token), time.Now().UTC(), models.NormalizeUUID(channelUUID), userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to update push token", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotParticipant()
	}
	s.invalidate(ctx, channelUUID)
	return nil
}

// ClearParticipantPushToken removes a token the push gateway reported as
// permanently invalid. Missing rows are ignored: the participant may have
// left between the failed delivery and the cleanup.
func (s *Store) ClearParticipantPushToken(ctx context.Context, channelUUID, userID string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE channel_participants
		SET ephemeral_push_token = NULL
		WHERE channel_uuid = ? AND user_id = ?`,
		models.NormalizeUUID(channelUUID), userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to clear push token", err)
	}
	s.invalidate(ctx, channelUUID)
	return nil
}

// UpdateParticipantLocation stores a position report and refreshes
// last_seen.
func (s *Store) UpdateParticipantLocation(ctx context.Context, channelUUID, userID string, location *models.ParticipantLocation) error {
	defer observe("update_location", time.Now())

	if location == nil {
		return errs.New(errs.KindInvalid, "Location is required")
	}

	var alt, acc interface{}
	if location.Altitude != nil {
		alt = *location.Altitude
	}
	if location.Accuracy != nil {
		acc = *location.Accuracy
	}

	res, err := s.conn.ExecContext(ctx, `UPDATE channel_participants SET
		location_lat = ?, location_lon = ?, location_altitude = ?, location_accuracy = ?,
		last_seen = ?
	WHERE channel_uuid = ? AND user_id = ?`,
		location.Lat, location.Lon, alt, acc, time.Now().UTC(),
		models.NormalizeUUID(channelUUID), userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to update location", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotParticipant()
	}
	return nil
}

// TouchParticipant refreshes last_seen (heartbeat).
func (s *Store) TouchParticipant(ctx context.Context, channelUUID, userID string) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE channel_participants SET last_seen = ? WHERE channel_uuid = ? AND user_id = ?",
		time.Now().UTC(), models.NormalizeUUID(channelUUID), userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to refresh participant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotParticipant()
	}
	return nil
}

// UpdateParticipantQuality stores a connection quality report.
func (s *Store) UpdateParticipantQuality(ctx context.Context, channelUUID, userID string, quality models.ConnectionQuality) error {
	if !quality.Valid() {
		return errs.New(errs.KindInvalid, "Invalid connection quality")
	}
	res, err := s.conn.ExecContext(ctx, `UPDATE channel_participants
		SET connection_quality = ?, last_seen = ?
		WHERE channel_uuid = ? AND user_id = ?`,
		string(quality), time.Now().UTC(), models.NormalizeUUID(channelUUID), userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to update quality", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotParticipant()
	}
	return nil
}

// SetParticipantTransmitting flips the is_transmitting flag.
func (s *Store) SetParticipantTransmitting(ctx context.Context, channelUUID, userID string, transmitting bool) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE channel_participants SET is_transmitting = ? WHERE channel_uuid = ? AND user_id = ?",
		transmitting, models.NormalizeUUID(channelUUID), userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to update transmit flag", err)
	}
	return nil
}

// EvictParticipant removes a participant after the inactivity timeout and
// logs a user_left event with the timeout reason.
func (s *Store) EvictParticipant(ctx context.Context, channelUUID, userID, username string) error {
	channelUUID = models.NormalizeUUID(channelUUID)

	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM channel_participants WHERE channel_uuid = ? AND user_id = ?",
		channelUUID, userID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to evict participant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotParticipant()
	}

	s.LogEvent(ctx, channelUUID, userID, username, models.EventUserLeft, "", map[string]interface{}{
		"reason": "timeout",
	})
	s.invalidate(ctx, channelUUID)
	return nil
}

// scanParticipant reads one membership row in the canonical column order.
func scanParticipant(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	var lat, lon, alt, acc sql.NullFloat64
	var token, devOS, devOSVer, devApp, devUA sql.NullString
	var quality string

	err := row.Scan(&p.ChannelUUID, &p.UserID, &p.Username, &p.JoinTime, &p.LastSeen,
		&lat, &lon, &alt, &acc, &quality, &p.IsTransmitting, &token,
		&devOS, &devOSVer, &devApp, &devUA)
	if err != nil {
		return nil, err
	}

	p.ConnectionQuality = models.ConnectionQuality(quality)
	if lat.Valid && lon.Valid {
		loc := &models.ParticipantLocation{Lat: lat.Float64, Lon: lon.Float64}
		if alt.Valid {
			loc.Altitude = &alt.Float64
		}
		if acc.Valid {
			loc.Accuracy = &acc.Float64
		}
		p.Location = loc
	}
	if token.Valid && token.String != "" {
		p.EphemeralPushToken = &token.String
	}
	if devOS.Valid || devOSVer.Valid || devApp.Valid || devUA.Valid {
		p.DeviceInfo = &models.DeviceInfo{
			OS:         devOS.String,
			OSVersion:  devOSVer.String,
			AppVersion: devApp.String,
			UserAgent:  devUA.String,
		}
	}
	return &p, nil
}
