// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package models

// CreateChannelRequest is the body of POST /channels. Validation beyond the
// struct tags (VHF frequency shape, coordinate ranges) happens in the store.
type CreateChannelRequest struct {
	Name            string       `json:"name" validate:"required,min=1,max=100"`
	Type            ChannelType  `json:"type" validate:"required,oneof=site_local emergency general cross_country instructors"`
	Description     string       `json:"description,omitempty" validate:"max=500"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	RadiusKM        float64      `json:"radius_km,omitempty" validate:"omitempty,gt=0,lte=1000"`
	VHFFrequency    string       `json:"vhf_frequency,omitempty"`
	MaxParticipants int          `json:"max_participants,omitempty" validate:"omitempty,min=1,max=100"`
	Difficulty      Difficulty   `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
}

// CreateChannelWithUUIDRequest is the body of POST /channels/with-uuid.
// The UUID must be a well-formed RFC 4122 UUID (version digit 1-5) in any
// case; it is stored lowercase.
type CreateChannelWithUUIDRequest struct {
	UUID string `json:"uuid" validate:"required"`
	CreateChannelRequest
}

// UpdateChannelRequest is the body of PUT /channels/{uuid}. Nil fields are
// left unchanged.
type UpdateChannelRequest struct {
	Name            *string      `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Type            *ChannelType `json:"type,omitempty" validate:"omitempty,oneof=site_local emergency general cross_country instructors"`
	Description     *string      `json:"description,omitempty" validate:"omitempty,max=500"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	RadiusKM        *float64     `json:"radius_km,omitempty" validate:"omitempty,gt=0,lte=1000"`
	VHFFrequency    *string      `json:"vhf_frequency,omitempty"`
	MaxParticipants *int         `json:"max_participants,omitempty" validate:"omitempty,min=1,max=100"`
	Difficulty      *Difficulty  `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	IsActive        *bool        `json:"is_active,omitempty"`
}

// JoinChannelRequest is the optional body of POST /channels/{uuid}/join.
type JoinChannelRequest struct {
	Location           *ParticipantLocation `json:"location,omitempty"`
	EphemeralPushToken string               `json:"ephemeral_push_token,omitempty"`
	DeviceInfo         *DeviceInfo          `json:"device_info,omitempty"`
}

// UpdateTokenRequest is the body of PUT|POST /channels/{uuid}/update-token.
type UpdateTokenRequest struct {
	EphemeralPushToken string `json:"ephemeral_push_token" validate:"required"`
}

// PTTStartTransmissionRequest is the body of POST /transmissions/start.
type PTTStartTransmissionRequest struct {
	ChannelUUID    string               `json:"channel_uuid" validate:"required"`
	AudioFormat    AudioFormat          `json:"audio_format" validate:"required,oneof=aac-lc opus pcm"`
	SampleRate     int                  `json:"sample_rate" validate:"required,gt=0"`
	Bitrate        int                  `json:"bitrate,omitempty" validate:"omitempty,gt=0"`
	NetworkQuality ConnectionQuality    `json:"network_quality" validate:"required,oneof=excellent good fair poor"`
	Location       *ParticipantLocation `json:"location,omitempty"`
}

// PTTAudioChunkRequest is the body of POST /transmissions/{session_id}/chunk.
// AudioData is base64 on the wire; it is decoded once at the API boundary
// and the declared ChunkSizeBytes must equal the decoded length.
type PTTAudioChunkRequest struct {
	SessionID      string `json:"session_id" validate:"required"`
	AudioData      string `json:"audio_data" validate:"required"`
	ChunkSequence  int    `json:"chunk_sequence" validate:"required,min=1"`
	ChunkSizeBytes int    `json:"chunk_size_bytes" validate:"required,min=1"`
	TimestampMS    int64  `json:"timestamp_ms,omitempty"`
}

// PTTEndTransmissionRequest is the body of POST /transmissions/{session_id}/end.
type PTTEndTransmissionRequest struct {
	SessionID       string               `json:"session_id" validate:"required"`
	TotalDurationMS int64                `json:"total_duration_ms" validate:"required,gt=0"`
	FinalLocation   *ParticipantLocation `json:"final_location,omitempty"`
	Reason          string               `json:"reason,omitempty"`
}

// PTTStartTransmissionResponse is returned by a successful start.
// MaxDuration is seconds.
type PTTStartTransmissionResponse struct {
	SessionID    string `json:"session_id"`
	MaxDuration  int    `json:"max_duration"`
	WebsocketURL string `json:"websocket_url"`
}

// PTTChunkResponse acknowledges one accepted audio chunk.
type PTTChunkResponse struct {
	ChunkReceived        bool  `json:"chunk_received"`
	NextExpectedSequence int   `json:"next_expected_sequence"`
	DurationSoFarMS      int64 `json:"duration_so_far_ms"`
}

// PTTEndTransmissionResponse summarizes a closed transmission.
type PTTEndTransmissionResponse struct {
	TotalDurationMS      int64 `json:"total_duration_ms"`
	ChunksReceived       int   `json:"chunks_received"`
	TotalBytes           int64 `json:"total_bytes"`
	ParticipantsNotified int   `json:"participants_notified"`
}

// JoinChannelResponse pairs the refreshed participant with channel info.
type JoinChannelResponse struct {
	Participant *Participant `json:"participant"`
	ChannelInfo ChannelInfo  `json:"channel_info"`
}

// ChannelListResponse is the data payload of GET /channels.
type ChannelListResponse struct {
	Channels   []ChannelSummary `json:"channels"`
	TotalCount int              `json:"total_count"`
}

// HealthResponse is the data payload of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Services   map[string]string `json:"services"`
	Version    string            `json:"version"`
	APIVersion string            `json:"api_version"`
}
