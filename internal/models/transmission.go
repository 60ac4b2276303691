// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AudioFormat identifies the codec of a transmission's audio chunks.
type AudioFormat string

// Supported audio formats.
const (
	AudioFormatAACLC AudioFormat = "aac-lc"
	AudioFormatOpus  AudioFormat = "opus"
	AudioFormatPCM   AudioFormat = "pcm"
)

// Valid reports whether the audio format is supported.
func (f AudioFormat) Valid() bool {
	switch f {
	case AudioFormatAACLC, AudioFormatOpus, AudioFormatPCM:
		return true
	}
	return false
}

// End reasons recorded on transmission history rows.
const (
	EndReasonCompleted = "completed"
	EndReasonTimeout   = "timeout"
	EndReasonShutdown  = "shutdown"
	EndReasonError     = "error"
)

// TransmissionSession is the live state of one transmission. At most one
// exists per channel at any time; only its owner's chunk/end calls mutate it.
type TransmissionSession struct {
	SessionID            string            `json:"session_id"`
	ChannelUUID          string            `json:"channel_uuid"`
	UserID               string            `json:"user_id"`
	Username             string            `json:"username"`
	StartTime            time.Time         `json:"start_time"`
	EndTime              *time.Time        `json:"end_time,omitempty"`
	AudioFormat          AudioFormat       `json:"audio_format"`
	SampleRate           int               `json:"sample_rate"`
	Bitrate              int               `json:"bitrate,omitempty"`
	NetworkQuality       ConnectionQuality `json:"network_quality"`
	ChunksReceived       int               `json:"chunks_received"`
	TotalBytes           int64             `json:"total_bytes"`
	NextExpectedSequence int               `json:"next_expected_sequence"`
}

// NewSessionID builds a transmission session ID of the form
// ptt_{channel_uuid}_{user_id}_{start_ms}_{rand}. The format is stable for
// client compatibility; the server routes by the channel segment but the
// owning agent's lookup is the only authority on whether the session exists.
func NewSessionID(channelUUID, userID string, start time.Time) string {
	return fmt.Sprintf("ptt_%s_%s_%d_%s",
		channelUUID, userID, start.UnixMilli(), uuid.New().String()[:8])
}

// ParseSessionChannel extracts the channel UUID segment from a session ID
// for routing. Returns false for IDs that do not follow the ptt_ format.
// Channel UUIDs contain underscores never, so the segment after the prefix
// is unambiguous.
func ParseSessionChannel(sessionID string) (string, bool) {
	parts := strings.Split(sessionID, "_")
	if len(parts) < 5 || parts[0] != "ptt" {
		return "", false
	}
	ch := NormalizeUUID(parts[1])
	if !ValidChannelUUID(ch) {
		return "", false
	}
	return ch, true
}
