// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// validateChannelRequest checks the fields common to create and
// create-with-uuid. The validator package covers shape; this covers the
// domain rules (coordinate ranges, VHF frequency form, participant bounds).
func (s *Store) validateChannelRequest(req *models.CreateChannelRequest) error {
	if req.Name == "" {
		return errs.New(errs.KindInvalid, "Channel name is required")
	}
	if !req.Type.Valid() {
		return errs.New(errs.KindInvalid, "Invalid channel type")
	}
	if req.Coordinates != nil && !req.Coordinates.InRange() {
		return errs.New(errs.KindInvalid, "Coordinates out of range")
	}
	if !models.ValidVHFFrequency(req.VHFFrequency) {
		return errs.New(errs.KindInvalid, "Invalid VHF frequency")
	}
	if req.MaxParticipants != 0 &&
		(req.MaxParticipants < models.MinMaxParticipants || req.MaxParticipants > models.MaxMaxParticipants) {
		return errs.Newf(errs.KindInvalid, "max_participants must be between %d and %d",
			models.MinMaxParticipants, models.MaxMaxParticipants)
	}
	if !req.Difficulty.Valid() {
		return errs.New(errs.KindInvalid, "Invalid difficulty")
	}
	return nil
}

// channelFromRequest builds a Channel row from a validated create request.
func (s *Store) channelFromRequest(req *models.CreateChannelRequest, channelUUID, createdBy string) *models.Channel {
	radius := req.RadiusKM
	if radius <= 0 {
		radius = models.DefaultChannelRadiusKM
	}
	maxParticipants := req.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = s.defaultMaxParticipants
	}
	return &models.Channel{
		UUID:            channelUUID,
		Name:            req.Name,
		Type:            req.Type,
		Description:     req.Description,
		Coordinates:     req.Coordinates,
		RadiusKM:        radius,
		VHFFrequency:    req.VHFFrequency,
		MaxParticipants: maxParticipants,
		Difficulty:      req.Difficulty,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
		CreatedBy:       createdBy,
	}
}

// CreateChannel creates a channel with a server-assigned UUID, logs the
// channel_created event, invalidates the list cache, and publishes the
// registrar intent.
func (s *Store) CreateChannel(ctx context.Context, req *models.CreateChannelRequest, createdBy string) (*models.Channel, error) {
	return s.createChannel(ctx, req, createdBy, uuid.New().String())
}

// CreateChannelWithUUID creates a channel with a caller-supplied UUID. The
// UUID must be a well-formed RFC 4122 UUID (version digit 1-5) in any case
// and unique after lowercasing.
func (s *Store) CreateChannelWithUUID(ctx context.Context, req *models.CreateChannelRequest, createdBy, channelUUID string) (*models.Channel, error) {
	if !models.ValidChannelUUID(channelUUID) {
		return nil, errs.New(errs.KindInvalid, "Invalid channel UUID")
	}
	return s.createChannel(ctx, req, createdBy, channelUUID)
}

func (s *Store) createChannel(ctx context.Context, req *models.CreateChannelRequest, createdBy, channelUUID string) (*models.Channel, error) {
	defer observe("create_channel", time.Now())

	if err := s.validateChannelRequest(req); err != nil {
		return nil, err
	}

	ch := s.channelFromRequest(req, models.NormalizeUUID(channelUUID), createdBy)

	var lat, lon interface{}
	if ch.Coordinates != nil {
		lat, lon = ch.Coordinates.Lat, ch.Coordinates.Lon
	}

	_, err := s.conn.ExecContext(ctx, `INSERT INTO channels (
		uuid, name, type, description, lat, lon, radius_km, vhf_frequency,
		max_participants, difficulty, is_active, created_at, created_by
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.UUID, ch.Name, string(ch.Type), nullIfEmpty(ch.Description), lat, lon,
		ch.RadiusKM, nullIfEmpty(ch.VHFFrequency), ch.MaxParticipants,
		nullIfEmpty(string(ch.Difficulty)), ch.IsActive, ch.CreatedAt, ch.CreatedBy)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, errUUIDExists()
		}
		return nil, errs.Wrap(errs.KindUnavailable, "failed to create channel", err)
	}

	s.LogEvent(ctx, ch.UUID, createdBy, createdBy, models.EventChannelCreated, ch.Name, map[string]interface{}{
		"type": string(ch.Type),
	})
	s.invalidate(ctx, ch.UUID)
	if s.intents != nil {
		s.intents.ChannelCreated(ch.UUID, ch.Name)
	}

	logging.Ctx(ctx).Info().Str("channel", ch.UUID).Str("name", ch.Name).Msg("channel created")
	return ch, nil
}

// GetChannel fetches a single channel by UUID (any case).
func (s *Store) GetChannel(ctx context.Context, channelUUID string) (*models.Channel, error) {
	defer observe("get_channel", time.Now())

	row := s.conn.QueryRowContext(ctx, `SELECT
		uuid, name, type, description, lat, lon, radius_km, vhf_frequency,
		max_participants, difficulty, is_active, created_at, created_by,
		updated_at, updated_by
	FROM channels WHERE uuid = ?`, models.NormalizeUUID(channelUUID))

	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errChannelNotFound()
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to read channel", err)
	}
	return ch, nil
}

// ListChannels lists channels matching the filter with live participant
// counts and today's activity stats. Ordering: emergency channels first,
// then name ascending (code-point order), then UUID ascending.
func (s *Store) ListChannels(ctx context.Context, filter models.ChannelFilter) ([]models.ChannelSummary, error) {
	defer observe("list_channels", time.Now())

	query := `SELECT
		c.uuid, c.name, c.type, c.description, c.lat, c.lon, c.radius_km,
		c.vhf_frequency, c.max_participants, c.difficulty, c.is_active,
		c.created_at, c.created_by, c.updated_at, c.updated_by,
		(SELECT COUNT(*) FROM channel_participants p WHERE p.channel_uuid = c.uuid) AS current_participants
	FROM channels c`

	var conds []string
	var args []interface{}
	if filter.Type != "" {
		conds = append(conds, "c.type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ActiveOnly {
		conds = append(conds, "c.is_active")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to list channels", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []models.ChannelSummary
	for rows.Next() {
		var summary models.ChannelSummary
		ch, count, err := scanChannelWithCount(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindUnavailable, "failed to scan channel", err)
		}
		summary.Channel = *ch
		summary.CurrentParticipants = count
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to list channels", err)
	}

	summaries = filterByProximity(summaries, filter)

	stats, err := s.channelStatsToday(ctx)
	if err != nil {
		// Stats are decorative; the listing itself must not fail
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to compute channel stats")
	} else {
		for i := range summaries {
			if st, ok := stats[summaries[i].UUID]; ok {
				summaries[i].Stats = st
			} else {
				summaries[i].Stats = &models.ChannelStats{}
			}
		}
	}

	sortChannels(summaries)
	return summaries, nil
}

// filterByProximity keeps channels within RadiusKM of the filter point using
// the great-circle (Haversine) distance. Channels without coordinates are
// excluded from proximity-filtered listings.
func filterByProximity(summaries []models.ChannelSummary, filter models.ChannelFilter) []models.ChannelSummary {
	if filter.Lat == nil || filter.Lon == nil || filter.RadiusKM <= 0 {
		return summaries
	}
	out := summaries[:0]
	for _, summary := range summaries {
		if summary.Coordinates == nil {
			continue
		}
		d := haversineKM(*filter.Lat, *filter.Lon, summary.Coordinates.Lat, summary.Coordinates.Lon)
		if d <= filter.RadiusKM {
			out = append(out, summary)
		}
	}
	return out
}

// earthRadiusKM is the mean Earth radius used by the Haversine formula.
const earthRadiusKM = 6371.0

// haversineKM computes the great-circle distance between two WGS84 points.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180.0
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// sortChannels orders emergency channels first, then name ascending by
// code point, then UUID ascending as the tie-break.
func sortChannels(summaries []models.ChannelSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		ei := summaries[i].Type == models.ChannelTypeEmergency
		ej := summaries[j].Type == models.ChannelTypeEmergency
		if ei != ej {
			return ei
		}
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].UUID < summaries[j].UUID
	})
}

// UpdateChannel applies the non-nil fields of req. Returns the updated
// channel.
func (s *Store) UpdateChannel(ctx context.Context, channelUUID string, req *models.UpdateChannelRequest, updatedBy string) (*models.Channel, error) {
	defer observe("update_channel", time.Now())

	channelUUID = models.NormalizeUUID(channelUUID)

	var sets []string
	var args []interface{}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, errs.New(errs.KindInvalid, "Channel name is required")
		}
		sets = append(sets, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, errs.New(errs.KindInvalid, "Invalid channel type")
		}
		sets = append(sets, "type = ?")
		args = append(args, string(*req.Type))
	}
	if req.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullIfEmpty(*req.Description))
	}
	if req.Coordinates != nil {
		if !req.Coordinates.InRange() {
			return nil, errs.New(errs.KindInvalid, "Coordinates out of range")
		}
		sets = append(sets, "lat = ?", "lon = ?")
		args = append(args, req.Coordinates.Lat, req.Coordinates.Lon)
	}
	if req.RadiusKM != nil {
		if *req.RadiusKM <= 0 {
			return nil, errs.New(errs.KindInvalid, "radius_km must be positive")
		}
		sets = append(sets, "radius_km = ?")
		args = append(args, *req.RadiusKM)
	}
	if req.VHFFrequency != nil {
		if !models.ValidVHFFrequency(*req.VHFFrequency) {
			return nil, errs.New(errs.KindInvalid, "Invalid VHF frequency")
		}
		sets = append(sets, "vhf_frequency = ?")
		args = append(args, nullIfEmpty(*req.VHFFrequency))
	}
	if req.MaxParticipants != nil {
		if *req.MaxParticipants < models.MinMaxParticipants || *req.MaxParticipants > models.MaxMaxParticipants {
			return nil, errs.Newf(errs.KindInvalid, "max_participants must be between %d and %d",
				models.MinMaxParticipants, models.MaxMaxParticipants)
		}
		sets = append(sets, "max_participants = ?")
		args = append(args, *req.MaxParticipants)
	}
	if req.Difficulty != nil {
		if !req.Difficulty.Valid() {
			return nil, errs.New(errs.KindInvalid, "Invalid difficulty")
		}
		sets = append(sets, "difficulty = ?")
		args = append(args, nullIfEmpty(string(*req.Difficulty)))
	}
	if req.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *req.IsActive)
	}

	if len(sets) == 0 {
		return s.GetChannel(ctx, channelUUID)
	}

	sets = append(sets, "updated_at = ?", "updated_by = ?")
	args = append(args, time.Now().UTC(), updatedBy)
	args = append(args, channelUUID)

	res, err := s.conn.ExecContext(ctx,
		fmt.Sprintf("UPDATE channels SET %s WHERE uuid = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to update channel", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errChannelNotFound()
	}

	ch, err := s.GetChannel(ctx, channelUUID)
	if err != nil {
		return nil, err
	}

	s.LogEvent(ctx, channelUUID, updatedBy, updatedBy, models.EventChannelUpdated, ch.Name, nil)
	s.invalidate(ctx, channelUUID)
	if s.intents != nil {
		s.intents.ChannelUpdated(channelUUID, ch.Name)
	}
	return ch, nil
}

// SoftDelete marks the channel inactive. Participants and history are
// preserved.
func (s *Store) SoftDelete(ctx context.Context, channelUUID, deletedBy string) error {
	defer observe("soft_delete_channel", time.Now())

	channelUUID = models.NormalizeUUID(channelUUID)

	res, err := s.conn.ExecContext(ctx,
		"UPDATE channels SET is_active = FALSE, updated_at = ?, updated_by = ? WHERE uuid = ?",
		time.Now().UTC(), deletedBy, channelUUID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to delete channel", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errChannelNotFound()
	}

	s.LogEvent(ctx, channelUUID, deletedBy, deletedBy, models.EventChannelDeleted, "", nil)
	s.invalidate(ctx, channelUUID)

	logging.Ctx(ctx).Info().Str("channel", channelUUID).Msg("channel soft-deleted")
	return nil
}

// HardDelete removes the channel and cascades over participants, events,
// and transmission history in one transaction. No channel_hard_deleted
// event is logged: the cascade would remove the row immediately.
func (s *Store) HardDelete(ctx context.Context, channelUUID string) error {
	defer observe("hard_delete_channel", time.Now())

	channelUUID = models.NormalizeUUID(channelUUID)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to start transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM channels WHERE uuid = ?", channelUUID)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to delete channel", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errChannelNotFound()
	}

	for _, stmt := range []string{
		"DELETE FROM channel_participants WHERE channel_uuid = ?",
		"DELETE FROM channel_messages WHERE channel_uuid = ?",
		"DELETE FROM transmission_history WHERE channel_uuid = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, channelUUID); err != nil {
			return errs.Wrap(errs.KindUnavailable, "failed to cascade channel delete", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindUnavailable, "failed to commit channel delete", err)
	}

	s.invalidate(ctx, channelUUID)
	if s.intents != nil {
		s.intents.ChannelHardDeleted(channelUUID)
	}

	logging.Ctx(ctx).Info().Str("channel", channelUUID).Msg("channel hard-deleted")
	return nil
}

// ChannelStats returns today's activity stats for a single channel.
func (s *Store) ChannelStats(ctx context.Context, channelUUID string) (*models.ChannelStats, error) {
	stats, err := s.channelStatsToday(ctx)
	if err != nil {
		return nil, err
	}
	if st, ok := stats[models.NormalizeUUID(channelUUID)]; ok {
		return st, nil
	}
	return &models.ChannelStats{}, nil
}

// channelStatsToday computes per-channel stats since local midnight UTC:
// distinct participants seen today, transmissions started today, mean
// transmission duration, and the most recent activity timestamp.
func (s *Store) channelStatsToday(ctx context.Context) (map[string]*models.ChannelStats, error) {
	defer observe("channel_stats", time.Now())

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	stats := make(map[string]*models.ChannelStats)

	rows, err := s.conn.QueryContext(ctx, `SELECT
		channel_uuid,
		COUNT(*) AS transmissions,
		AVG(COALESCE(duration_ms, 0)) / 1000.0 AS avg_duration,
		MAX(start_time) AS last_activity
	FROM transmission_history
	WHERE start_time >= ?
	GROUP BY channel_uuid`, midnight)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to compute transmission stats", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var channelUUID string
		var st models.ChannelStats
		var avg sql.NullFloat64
		var last sql.NullTime
		if err := rows.Scan(&channelUUID, &st.TotalTransmissionsToday, &avg, &last); err != nil {
			return nil, errs.Wrap(errs.KindUnavailable, "failed to scan stats", err)
		}
		if avg.Valid {
			st.AvgTransmissionDuration = avg.Float64
		}
		if last.Valid {
			t := last.Time
			st.LastActivity = &t
		}
		stats[channelUUID] = &st
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to compute stats", err)
	}

	prows, err := s.conn.QueryContext(ctx, `SELECT channel_uuid, COUNT(*)
		FROM channel_participants WHERE last_seen >= ? GROUP BY channel_uuid`, midnight)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "failed to compute participant stats", err)
	}
	defer func() { _ = prows.Close() }()

	for prows.Next() {
		var channelUUID string
		var count int
		if err := prows.Scan(&channelUUID, &count); err != nil {
			return nil, errs.Wrap(errs.KindUnavailable, "failed to scan participant stats", err)
		}
		st, ok := stats[channelUUID]
		if !ok {
			st = &models.ChannelStats{}
			stats[channelUUID] = st
		}
		st.TotalParticipantsToday = count
	}
	return stats, prows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for the channel scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanChannel reads one channel row in the canonical column order.
func scanChannel(row rowScanner) (*models.Channel, error) {
	var ch models.Channel
	var description, vhf, difficulty, updatedBy sql.NullString
	var lat, lon sql.NullFloat64
	var updatedAt sql.NullTime

	err := row.Scan(&ch.UUID, &ch.Name, (*string)(&ch.Type), &description, &lat, &lon,
		&ch.RadiusKM, &vhf, &ch.MaxParticipants, &difficulty, &ch.IsActive,
		&ch.CreatedAt, &ch.CreatedBy, &updatedAt, &updatedBy)
	if err != nil {
		return nil, err
	}

	ch.Description = description.String
	ch.VHFFrequency = vhf.String
	ch.Difficulty = models.Difficulty(difficulty.String)
	if lat.Valid && lon.Valid {
		ch.Coordinates = &models.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		ch.UpdatedAt = &t
	}
	if updatedBy.Valid {
		v := updatedBy.String
		ch.UpdatedBy = &v
	}
	return &ch, nil
}

// scanChannelWithCount reads one channel row plus the participant count.
func scanChannelWithCount(rows *sql.Rows) (*models.Channel, int, error) {
	var ch models.Channel
	var description, vhf, difficulty, updatedBy sql.NullString
	var lat, lon sql.NullFloat64
	var updatedAt sql.NullTime
	var count int

	err := rows.Scan(&ch.UUID, &ch.Name, (*string)(&ch.Type), &description, &lat, &lon,
		&ch.RadiusKM, &vhf, &ch.MaxParticipants, &difficulty, &ch.IsActive,
		&ch.CreatedAt, &ch.CreatedBy, &updatedAt, &updatedBy, &count)
	if err != nil {
		return nil, 0, err
	}

	ch.Description = description.String
	ch.VHFFrequency = vhf.String
	ch.Difficulty = models.Difficulty(difficulty.String)
	if lat.Valid && lon.Valid {
		ch.Coordinates = &models.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		ch.UpdatedAt = &t
	}
	if updatedBy.Valid {
		v := updatedBy.String
		ch.UpdatedBy = &v
	}
	return &ch, count, nil
}

// nullIfEmpty maps "" to SQL NULL for optional text columns.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isDuplicateKey detects a primary-key violation from DuckDB.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Duplicate key")
}
