// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package registrar reflects channel lifecycle into the identity provider's
// scope set, out of band.
//
// Channel operations publish intents onto a Watermill bus; the registrar
// consumes them with retry and idempotent upserts. A registrar failure
// never fails the originating channel operation.
package registrar

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
)

// TopicChannelIntents is the Watermill topic carrying channel lifecycle
// intents.
const TopicChannelIntents = "channel.intents"

// Intent types.
const (
	IntentChannelCreated     = "channel_created"
	IntentChannelUpdated     = "channel_updated"
	IntentChannelHardDeleted = "channel_hard_deleted"
)

// Intent is one channel lifecycle notification for the registrar.
type Intent struct {
	Type        string `json:"type"`
	ChannelUUID string `json:"channel_uuid"`
	ChannelName string `json:"channel_name,omitempty"`
}

// NewBus creates the in-process Pub/Sub carrying intents between the store
// and the registrar.
func NewBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		// The registrar is best-effort; intents published with no consumer
		// running (registrar disabled) must not block the store.
		BlockPublishUntilSubscriberAck: false,
	}, watermill.NopLogger{})
}

// Publisher publishes channel lifecycle intents. It implements the store's
// IntentPublisher hook.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher wraps a Watermill publisher.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// ChannelCreated publishes a creation intent.
func (p *Publisher) ChannelCreated(uuid, name string) {
	p.publish(Intent{Type: IntentChannelCreated, ChannelUUID: uuid, ChannelName: name})
}

// ChannelUpdated publishes an update intent.
func (p *Publisher) ChannelUpdated(uuid, name string) {
	p.publish(Intent{Type: IntentChannelUpdated, ChannelUUID: uuid, ChannelName: name})
}

// ChannelHardDeleted publishes a hard-delete intent.
func (p *Publisher) ChannelHardDeleted(uuid string) {
	p.publish(Intent{Type: IntentChannelHardDeleted, ChannelUUID: uuid})
}

// publish is fire-and-forget: a failed publish is logged and dropped, never
// surfaced to the channel operation that triggered it.
func (p *Publisher) publish(intent Intent) {
	payload, err := json.Marshal(intent)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode registrar intent")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pub.Publish(TopicChannelIntents, msg); err != nil {
		logging.Warn().Err(err).
			Str("intent", intent.Type).
			Str("channel", intent.ChannelUUID).
			Msg("failed to publish registrar intent")
	}
}
