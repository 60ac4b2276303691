// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package registrar

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
)

// ScopeRegistry is the identity provider's management surface as the
// registrar needs it: idempotent scope upsert and removal.
type ScopeRegistry interface {
	// EnsureScope creates the scope if absent and updates its description
	// if present.
	EnsureScope(ctx context.Context, scope, description string) error

	// RemoveScope deletes the scope. Removing an absent scope is not an
	// error.
	RemoveScope(ctx context.Context, scope string) error
}

// Registrar consumes channel lifecycle intents and mirrors them into the
// identity provider's scope set.
type Registrar struct {
	sub          message.Subscriber
	registry     ScopeRegistry
	accessPrefix string

	// limiter paces management API calls; the provider rate-limits the
	// management surface aggressively.
	limiter *rate.Limiter

	maxAttempts int
	backoffBase time.Duration
}

// New creates a registrar consuming from sub and applying changes through
// registry.
func New(sub message.Subscriber, registry ScopeRegistry, accessPrefix string) *Registrar {
	return &Registrar{
		sub:          sub,
		registry:     registry,
		accessPrefix: accessPrefix,
		limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		maxAttempts:  5,
		backoffBase:  500 * time.Millisecond,
	}
}

// Serve consumes intents until the context is canceled. Designed for suture
// supervision: returning ctx.Err() on cancellation, an error on subscriber
// failure (the supervisor restarts the service).
func (r *Registrar) Serve(ctx context.Context) error {
	messages, err := r.sub.Subscribe(ctx, TopicChannelIntents)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicChannelIntents, err)
	}

	logging.Info().Str("component", "registrar").Msg("permission registrar started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("intent subscription closed")
			}
			r.handle(ctx, msg)
			msg.Ack()
		}
	}
}

// handle applies one intent with bounded retry. Exhausted retries are
// logged and dropped: the registrar is best-effort and the next update
// intent for the channel re-asserts the scope.
func (r *Registrar) handle(ctx context.Context, msg *message.Message) {
	var intent Intent
	if err := json.Unmarshal(msg.Payload, &intent); err != nil {
		logging.Warn().Err(err).Str("message", msg.UUID).Msg("malformed registrar intent")
		return
	}

	scope := r.accessPrefix + intent.ChannelUUID

	var apply func(context.Context) error
	switch intent.Type {
	case IntentChannelCreated, IntentChannelUpdated:
		description := fmt.Sprintf("Access to channel %s", intent.ChannelName)
		apply = func(ctx context.Context) error {
			return r.registry.EnsureScope(ctx, scope, description)
		}
	case IntentChannelHardDeleted:
		apply = func(ctx context.Context) error {
			return r.registry.RemoveScope(ctx, scope)
		}
	default:
		logging.Warn().Str("type", intent.Type).Msg("unknown registrar intent type")
		return
	}

	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err = r.limiter.Wait(ctx); err != nil {
			return
		}
		if err = apply(ctx); err == nil {
			logging.Debug().
				Str("intent", intent.Type).
				Str("scope", scope).
				Msg("registrar intent applied")
			return
		}
		if ctx.Err() != nil {
			return
		}

		delay := r.backoffBase << (attempt - 1)
		logging.Warn().Err(err).
			Str("scope", scope).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("registrar apply failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	logging.Error().Err(err).
		Str("intent", intent.Type).
		Str("scope", scope).
		Msg("registrar intent dropped after retries")
}
