// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package models

import "time"

// EventType identifies an entry in a channel's append-only event log.
type EventType string

// Channel event types. channel_hard_deleted is never logged because the
// cascade removes the rows it would live in.
const (
	EventChannelCreated EventType = "channel_created"
	EventChannelUpdated EventType = "channel_updated"
	EventChannelDeleted EventType = "channel_deleted"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"
	EventAudioStart     EventType = "audio_start"
	EventAudioEnd       EventType = "audio_end"
	EventEmergency      EventType = "emergency"
)

// ChannelEvent is one audit-log entry. The log survives soft delete and is
// removed by the hard-delete cascade.
type ChannelEvent struct {
	ID          int64                  `json:"id"`
	ChannelUUID string                 `json:"channel_uuid"`
	UserID      string                 `json:"user_id"`
	Username    string                 `json:"username"`
	EventType   EventType              `json:"event_type"`
	Content     string                 `json:"content,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}
