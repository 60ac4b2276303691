// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package agent holds the authoritative in-memory state of each channel:
// the membership roster, the active transmission with its chunk sequencing,
// and the live stream subscribers.
//
// One Agent exists per channel UUID, resolved through the Registry. Each
// agent processes its operations on a single inbox goroutine, which yields
// the exactly-one-transmitter invariant without locks: two concurrent start
// calls are serialized by the inbox, the first wins, the second observes the
// active session and is rejected.
package agent

import (
	"context"
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// EventType identifies a broadcast event on the stream plane.
type EventType string

// Broadcast event types, as subscribers observe them.
const (
	EventTransmissionStarted EventType = "transmission_started"
	EventAudioChunk          EventType = "audio_chunk"
	EventTransmissionEnded   EventType = "transmission_ended"
	EventParticipantJoined   EventType = "participant_joined"
	EventParticipantLeft     EventType = "participant_left"
	EventEmergencyAlert      EventType = "emergency_alert"
)

// Event is one broadcast to stream subscribers. AudioData carries raw bytes;
// the stream hub re-encodes to base64 only when writing the JSON frame.
type Event struct {
	Type        EventType
	ChannelUUID string
	SessionID   string
	UserID      string
	Username    string
	AudioFormat models.AudioFormat
	SampleRate  int
	Sequence    int
	AudioData   []byte
	Reason      string
	Message     string
	Timestamp   time.Time
}

// Subscriber is one live stream connection registered with an agent.
// Implementations must not block in Send: the hub gives each connection a
// bounded queue and reports overflow by returning false.
type Subscriber interface {
	// UserID identifies the participant behind the connection.
	UserID() string

	// Send enqueues an event for delivery. Returns false when the
	// connection's queue is full; the agent then drops the subscription and
	// asks the hub to close the connection.
	Send(event Event) bool

	// CloseSlow closes the connection with the slow_consumer reason.
	CloseSlow()
}

// Store is the slice of the channel store the agent depends on.
type Store interface {
	GetChannel(ctx context.Context, channelUUID string) (*models.Channel, error)
	GetParticipants(ctx context.Context, channelUUID string) ([]models.Participant, error)
	InsertTransmissionStart(ctx context.Context, session *models.TransmissionSession) error
	CompleteTransmission(ctx context.Context, sessionID string, endTime time.Time,
		durationMS int64, chunksReceived int, totalBytes int64, reason string) error
	SetParticipantTransmitting(ctx context.Context, channelUUID, userID string, transmitting bool) error
	TouchParticipant(ctx context.Context, channelUUID, userID string) error
	UpdateParticipantLocation(ctx context.Context, channelUUID, userID string, location *models.ParticipantLocation) error
	UpdateParticipantQuality(ctx context.Context, channelUUID, userID string, quality models.ConnectionQuality) error
	EvictParticipant(ctx context.Context, channelUUID, userID, username string) error
	LogEvent(ctx context.Context, channelUUID, userID, username string,
		eventType models.EventType, content string, metadata map[string]interface{})
}

// PushEvent identifies the kind of push notification a transmission emits.
type PushEvent string

// Push event kinds per the gateway contract.
const (
	PushEventStart          PushEvent = "start"
	PushEventChunkAvailable PushEvent = "chunk-available"
	PushEventEnd            PushEvent = "end"
	PushEventEmergency      PushEvent = "emergency"
)

// PushRecipient addresses one participant's ephemeral device token.
type PushRecipient struct {
	UserID string
	Token  string
}

// Notifier delivers per-transmission events to participants' push tokens.
// Delivery is fire-and-forget; the agent never awaits gateway calls.
type Notifier interface {
	Notify(ctx context.Context, event PushEvent, channelUUID, sessionID, initiatorUsername string,
		recipients []PushRecipient)
}
