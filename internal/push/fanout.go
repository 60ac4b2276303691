// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package push delivers per-transmission events to participants' ephemeral
// device tokens through the push-notification gateway.
//
// Delivery is fire-and-forget with bounded retry (an initial attempt plus
// three retries, backing off 200/800/3200 ms). Permanent failures — invalid or unregistered
// tokens — clear the token on the participant record. A circuit breaker
// guards the gateway so a dead gateway cannot pile up goroutines.
package push

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/metrics"
)

// retryDelays are the waits before the second and later attempts.
var retryDelays = []time.Duration{200 * time.Millisecond, 800 * time.Millisecond, 3200 * time.Millisecond}

// deliveryTimeout bounds one whole delivery including retries.
const deliveryTimeout = 15 * time.Second

// TokenCleaner removes permanently dead tokens from participant records.
// Implemented by the channel store.
type TokenCleaner interface {
	ClearParticipantPushToken(ctx context.Context, channelUUID, userID string) error
}

// Fanout is the push gateway client. It implements agent.Notifier.
type Fanout struct {
	httpClient *http.Client
	url        string
	keyID      string
	teamID     string
	cleaner    TokenCleaner

	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
}

// New creates the fan-out client. Returns nil when no gateway URL is
// configured; the agent treats a nil notifier as fan-out disabled.
func New(cfg *config.PushConfig, cleaner TokenCleaner) *Fanout {
	if cfg.URL == "" {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "push-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("push gateway circuit state changed")
		},
	})

	return &Fanout{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		keyID:      cfg.KeyID,
		teamID:     cfg.TeamID,
		cleaner:    cleaner,
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(200), 50),
	}
}

// pushPayload is the gateway request body for one device token.
type pushPayload struct {
	Token             string `json:"token"`
	ChannelUUID       string `json:"channel_uuid"`
	SessionID         string `json:"session_id,omitempty"`
	InitiatorUsername string `json:"initiator_username"`
	EventType         string `json:"event_type"`
	Priority          string `json:"priority"`
}

// Notify implements agent.Notifier. It returns immediately; deliveries run
// on their own goroutine detached from the caller's deadline.
func (f *Fanout) Notify(ctx context.Context, event agent.PushEvent, channelUUID, sessionID, initiatorUsername string,
	recipients []agent.PushRecipient,
) {
	priority := "normal"
	if event == agent.PushEventEmergency {
		priority = "high"
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		for _, recipient := range recipients {
			f.deliver(ctx, pushPayload{
				Token:             recipient.Token,
				ChannelUUID:       channelUUID,
				SessionID:         sessionID,
				InitiatorUsername: initiatorUsername,
				EventType:         string(event),
				Priority:          priority,
			}, channelUUID, recipient.UserID)
		}
	}()
}

// deliver sends one push with bounded retry. Permanent token failures clear
// the token and stop retrying.
func (f *Fanout) deliver(ctx context.Context, payload pushPayload, channelUUID, userID string) {
	var lastErr error

	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			metrics.PushDeliveries.WithLabelValues("retried").Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelays[attempt-1]):
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return
		}

		status, err := f.send(ctx, payload)
		if err == nil && status < 300 {
			metrics.PushDeliveries.WithLabelValues("delivered").Inc()
			return
		}

		// Invalid token or unregistered device: the token is dead, clear it
		// and stop retrying.
		if status == http.StatusNotFound || status == http.StatusGone {
			metrics.PushDeliveries.WithLabelValues("token_cleared").Inc()
			if f.cleaner != nil {
				if cerr := f.cleaner.ClearParticipantPushToken(ctx, channelUUID, userID); cerr != nil {
					logging.Warn().Err(cerr).Str("user", userID).Msg("failed to clear dead push token")
				}
			}
			return
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("gateway returned status %d", status)
		}
	}

	metrics.PushDeliveries.WithLabelValues("failed").Inc()
	logging.Warn().Err(lastErr).
		Str("channel", channelUUID).
		Str("user", userID).
		Str("event", payload.EventType).
		Msg("push delivery failed after retries")
}

// send performs one gateway call through the circuit breaker. Returns the
// HTTP status (0 when the request never completed).
func (f *Fanout) send(ctx context.Context, payload pushPayload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	var status int
	_, err = f.breaker.Execute(func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		if f.keyID != "" {
			req.Header.Set("X-Push-Key-Id", f.keyID)
		}
		if f.teamID != "" {
			req.Header.Set("X-Push-Team-Id", f.teamID)
		}
		req.Header.Set("X-Push-Priority", payload.Priority)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer func() { _ = resp.Body.Close() }()
		status = resp.StatusCode

		// Token failures are terminal for the recipient but say nothing
		// about gateway health; keep the breaker closed for them.
		if status >= 500 {
			return struct{}{}, fmt.Errorf("gateway returned status %d", status)
		}
		return struct{}{}, nil
	})
	return status, err
}
