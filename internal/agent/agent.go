// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package agent

import (
	"context"
	"sort"
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/metrics"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// tickInterval drives the duration cap and participant eviction checks.
const tickInterval = time.Second

// Options tunes agent behavior. Zero values select the production
// defaults: 30 s transmission cap, 300 s participant timeout.
type Options struct {
	MaxTransmissionDuration time.Duration
	ParticipantTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTransmissionDuration <= 0 {
		o.MaxTransmissionDuration = 30 * time.Second
	}
	if o.ParticipantTimeout <= 0 {
		o.ParticipantTimeout = 300 * time.Second
	}
	return o
}

// participantState is the roster entry the agent maintains per member.
type participantState struct {
	userID         string
	username       string
	joinTime       time.Time
	lastSeen       time.Time
	pushToken      string
	quality        models.ConnectionQuality
	isTransmitting bool
}

// Agent owns the live state of one channel. All state mutation happens on
// the inbox goroutine; public methods enqueue closures and await their
// completion.
type Agent struct {
	channelUUID string
	store       Store
	notifier    Notifier
	opts        Options

	inbox   chan func()
	stopped chan struct{}

	// State below is touched only by the inbox goroutine.
	roster      map[string]*participantState
	subscribers map[string]Subscriber
	active      *models.TransmissionSession
	// chunkNotified marks that the chunk-available push for the active
	// session has been sent to offline participants.
	chunkNotified bool
}

// newAgent builds an agent with the roster preloaded from the store.
// The registry starts the inbox loop.
func newAgent(channelUUID string, store Store, notifier Notifier, opts Options) *Agent {
	return &Agent{
		channelUUID: channelUUID,
		store:       store,
		notifier:    notifier,
		opts:        opts.withDefaults(),
		inbox:       make(chan func(), 128),
		stopped:     make(chan struct{}),
		roster:      make(map[string]*participantState),
		subscribers: make(map[string]Subscriber),
	}
}

// run is the inbox loop. It executes enqueued operations in arrival order
// and a periodic tick for the duration cap and participant eviction.
func (a *Agent) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer close(a.stopped)

	for {
		select {
		case <-ctx.Done():
			a.shutdown(context.Background())
			return
		case fn := <-a.inbox:
			a.safely(ctx, fn)
		case <-ticker.C:
			a.safely(ctx, func() { a.tick(ctx) })
		}
	}
}

// safely runs one inbox operation, recovering from internal state
// corruption: the active session is discarded with a transmission_ended
// error broadcast and the roster is reloaded from the store, then the loop
// continues.
func (a *Agent) safely(ctx context.Context, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logging.Error().
			Str("channel", a.channelUUID).
			Interface("panic", r).
			Msg("channel agent recovered from internal failure")

		if a.active != nil {
			a.broadcast(Event{
				Type:        EventTransmissionEnded,
				ChannelUUID: a.channelUUID,
				SessionID:   a.active.SessionID,
				UserID:      a.active.UserID,
				Username:    a.active.Username,
				Reason:      models.EndReasonError,
				Timestamp:   time.Now().UTC(),
			}, "")
			metrics.ActiveTransmissions.Dec()
			a.active = nil
			a.chunkNotified = false
		}

		a.roster = make(map[string]*participantState)
		if err := a.loadRoster(ctx); err != nil {
			logging.Error().Err(err).
				Str("channel", a.channelUUID).
				Msg("failed to reload roster after agent recovery")
		}
	}()
	fn()
}

// do runs fn on the inbox goroutine and waits for it. On context deadline
// the operation still completes inside the agent (completed persistence is
// not rolled back); only the caller observes Timeout.
func (a *Agent) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case a.inbox <- wrapped:
	case <-ctx.Done():
		return errs.New(errs.KindTimeout, "Operation timed out")
	case <-a.stopped:
		return errs.New(errs.KindUnavailable, "Channel agent stopped")
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.New(errs.KindTimeout, "Operation timed out")
	}
}

// loadRoster seeds the roster from the store when the agent is created.
func (a *Agent) loadRoster(ctx context.Context) error {
	participants, err := a.store.GetParticipants(ctx, a.channelUUID)
	if err != nil {
		return err
	}
	for i := range participants {
		p := &participants[i]
		state := &participantState{
			userID:   p.UserID,
			username: p.Username,
			joinTime: p.JoinTime,
			lastSeen: p.LastSeen,
			quality:  p.ConnectionQuality,
		}
		if p.EphemeralPushToken != nil {
			state.pushToken = *p.EphemeralPushToken
		}
		a.roster[p.UserID] = state
	}
	return nil
}

// Start begins a transmission. Preconditions: the caller is a participant
// and no other transmission is active.
func (a *Agent) Start(ctx context.Context, req *models.PTTStartTransmissionRequest, userID, username string) (*models.PTTStartTransmissionResponse, error) {
	var resp *models.PTTStartTransmissionResponse
	var opErr error

	err := a.do(ctx, func() {
		member, ok := a.roster[userID]
		if !ok {
			opErr = errs.New(errs.KindForbidden, "Not a participant of this channel")
			return
		}
		if a.active != nil {
			opErr = errs.New(errs.KindConflict, "A transmission is already active on this channel")
			return
		}
		if !req.AudioFormat.Valid() {
			opErr = errs.New(errs.KindInvalid, "Invalid audio format")
			return
		}
		if req.SampleRate <= 0 {
			opErr = errs.New(errs.KindInvalid, "Invalid sample rate")
			return
		}
		if !req.NetworkQuality.Valid() {
			opErr = errs.New(errs.KindInvalid, "Invalid network quality")
			return
		}

		now := time.Now().UTC()
		session := &models.TransmissionSession{
			SessionID:            models.NewSessionID(a.channelUUID, userID, now),
			ChannelUUID:          a.channelUUID,
			UserID:               userID,
			Username:             username,
			StartTime:            now,
			AudioFormat:          req.AudioFormat,
			SampleRate:           req.SampleRate,
			Bitrate:              req.Bitrate,
			NetworkQuality:       req.NetworkQuality,
			NextExpectedSequence: 1,
		}

		// The history row must exist before any subscriber observes the
		// transmission.
		if err := a.store.InsertTransmissionStart(ctx, session); err != nil {
			opErr = err
			return
		}
		if err := a.store.SetParticipantTransmitting(ctx, a.channelUUID, userID, true); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to flag transmitting participant")
		}
		a.store.LogEvent(ctx, a.channelUUID, userID, username, models.EventAudioStart, "", map[string]interface{}{
			"session_id":   session.SessionID,
			"audio_format": string(session.AudioFormat),
		})

		a.active = session
		a.chunkNotified = false
		member.isTransmitting = true
		member.lastSeen = now
		metrics.ActiveTransmissions.Inc()

		a.broadcast(Event{
			Type:        EventTransmissionStarted,
			ChannelUUID: a.channelUUID,
			SessionID:   session.SessionID,
			UserID:      userID,
			Username:    username,
			AudioFormat: session.AudioFormat,
			SampleRate:  session.SampleRate,
			Timestamp:   now,
		}, "")

		a.notifyPush(ctx, PushEventStart, session.SessionID, username, userID)

		resp = &models.PTTStartTransmissionResponse{
			SessionID:   session.SessionID,
			MaxDuration: int(a.opts.MaxTransmissionDuration.Seconds()),
		}

		logging.Ctx(ctx).Info().
			Str("channel", a.channelUUID).
			Str("session", session.SessionID).
			Str("user", userID).
			Msg("transmission started")
	})
	if err != nil {
		return nil, err
	}
	return resp, opErr
}

// Chunk ingests one audio chunk from the session owner. The payload is raw
// bytes, already decoded at the API boundary; its length must equal the
// declared chunk size and the sequence must be exactly the next expected
// one. Rejected chunks do not advance the sequence.
func (a *Agent) Chunk(ctx context.Context, req *models.PTTAudioChunkRequest, payload []byte, userID string) (*models.PTTChunkResponse, error) {
	var resp *models.PTTChunkResponse
	var opErr error

	err := a.do(ctx, func() {
		// A non-owner is told the session does not exist rather than that
		// someone else's session is in flight.
		if a.active == nil || a.active.SessionID != req.SessionID || a.active.UserID != userID {
			opErr = errs.New(errs.KindNotFound, "Transmission session not found")
			return
		}
		if len(payload) != req.ChunkSizeBytes {
			metrics.SequenceViolations.Inc()
			opErr = errs.New(errs.KindInvalid, "Chunk size does not match decoded audio data")
			return
		}
		if req.ChunkSequence != a.active.NextExpectedSequence {
			metrics.SequenceViolations.Inc()
			opErr = errs.Newf(errs.KindInvalid, "Invalid chunk sequence. Expected %d",
				a.active.NextExpectedSequence).WithDetails(map[string]interface{}{
				"expected_sequence": a.active.NextExpectedSequence,
				"received_sequence": req.ChunkSequence,
			})
			return
		}

		now := time.Now().UTC()
		a.active.ChunksReceived++
		a.active.TotalBytes += int64(len(payload))
		a.active.NextExpectedSequence++

		if member, ok := a.roster[a.active.UserID]; ok {
			member.lastSeen = now
		}

		metrics.ChunksReceived.Inc()
		metrics.ChunkBytes.Add(float64(len(payload)))

		a.broadcast(Event{
			Type:        EventAudioChunk,
			ChannelUUID: a.channelUUID,
			SessionID:   a.active.SessionID,
			UserID:      a.active.UserID,
			Username:    a.active.Username,
			AudioFormat: a.active.AudioFormat,
			Sequence:    req.ChunkSequence,
			AudioData:   payload,
			Timestamp:   now,
		}, a.active.UserID)

		// Participants with no live stream still learn audio is flowing,
		// once per session.
		if !a.chunkNotified {
			a.chunkNotified = true
			a.notifyOffline(ctx, PushEventChunkAvailable, a.active.SessionID, a.active.Username, a.active.UserID)
		}

		resp = &models.PTTChunkResponse{
			ChunkReceived:        true,
			NextExpectedSequence: a.active.NextExpectedSequence,
			DurationSoFarMS:      now.Sub(a.active.StartTime).Milliseconds(),
		}
	})
	if err != nil {
		return nil, err
	}
	return resp, opErr
}

// End closes the active transmission. Only the session owner may end it.
func (a *Agent) End(ctx context.Context, req *models.PTTEndTransmissionRequest, userID string) (*models.PTTEndTransmissionResponse, error) {
	var resp *models.PTTEndTransmissionResponse
	var opErr error

	err := a.do(ctx, func() {
		if a.active == nil || a.active.SessionID != req.SessionID || a.active.UserID != userID {
			opErr = errs.New(errs.KindNotFound, "Transmission session not found")
			return
		}
		if req.TotalDurationMS <= 0 {
			opErr = errs.New(errs.KindInvalid, "total_duration_ms must be positive")
			return
		}

		reason := req.Reason
		if reason == "" {
			reason = models.EndReasonCompleted
		}
		resp = a.endTransmission(ctx, reason, req.TotalDurationMS)
	})
	if err != nil {
		return nil, err
	}
	return resp, opErr
}

// endTransmission closes the active session: history row completion,
// transmitter flag, audit event, ended broadcast, push fan-out, metrics.
// Must run on the inbox goroutine with an active session.
func (a *Agent) endTransmission(ctx context.Context, reason string, totalDurationMS int64) *models.PTTEndTransmissionResponse {
	session := a.active
	now := time.Now().UTC()
	if totalDurationMS <= 0 {
		totalDurationMS = now.Sub(session.StartTime).Milliseconds()
	}

	if err := a.store.CompleteTransmission(ctx, session.SessionID, now,
		totalDurationMS, session.ChunksReceived, session.TotalBytes, reason); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("session", session.SessionID).
			Msg("failed to finalize transmission history")
	}
	if err := a.store.SetParticipantTransmitting(ctx, a.channelUUID, session.UserID, false); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to clear transmitting participant")
	}
	a.store.LogEvent(ctx, a.channelUUID, session.UserID, session.Username, models.EventAudioEnd, "", map[string]interface{}{
		"session_id":  session.SessionID,
		"duration_ms": totalDurationMS,
		"chunks":      session.ChunksReceived,
		"reason":      reason,
	})

	if member, ok := a.roster[session.UserID]; ok {
		member.isTransmitting = false
		member.lastSeen = now
	}

	notified := a.countNotifiable(session.UserID)

	a.broadcast(Event{
		Type:        EventTransmissionEnded,
		ChannelUUID: a.channelUUID,
		SessionID:   session.SessionID,
		UserID:      session.UserID,
		Username:    session.Username,
		Reason:      reason,
		Timestamp:   now,
	}, "")

	a.notifyPush(ctx, PushEventEnd, session.SessionID, session.Username, session.UserID)

	metrics.RecordTransmissionEnd(reason, time.Duration(totalDurationMS)*time.Millisecond)

	a.active = nil
	a.chunkNotified = false

	logging.Ctx(ctx).Info().
		Str("channel", a.channelUUID).
		Str("session", session.SessionID).
		Str("reason", reason).
		Int("chunks", session.ChunksReceived).
		Msg("transmission ended")

	return &models.PTTEndTransmissionResponse{
		TotalDurationMS:      totalDurationMS,
		ChunksReceived:       session.ChunksReceived,
		TotalBytes:           session.TotalBytes,
		ParticipantsNotified: notified,
	}
}

// Status returns a snapshot of the active transmission, or nil when idle.
func (a *Agent) Status(ctx context.Context) (*models.TransmissionSession, error) {
	var snapshot *models.TransmissionSession
	err := a.do(ctx, func() {
		if a.active != nil {
			copied := *a.active
			snapshot = &copied
		}
	})
	return snapshot, err
}

// Subscribe registers a stream subscriber. The current session's metadata is
// replayed immediately so a late joiner knows a transmission is in flight;
// past chunks are not replayed.
func (a *Agent) Subscribe(ctx context.Context, userID string, sub Subscriber) error {
	return a.do(ctx, func() {
		if old, ok := a.subscribers[userID]; ok && old != sub {
			old.CloseSlow()
		}
		a.subscribers[userID] = sub
		if member, ok := a.roster[userID]; ok {
			member.lastSeen = time.Now().UTC()
		}
		if a.active != nil {
			sub.Send(Event{
				Type:        EventTransmissionStarted,
				ChannelUUID: a.channelUUID,
				SessionID:   a.active.SessionID,
				UserID:      a.active.UserID,
				Username:    a.active.Username,
				AudioFormat: a.active.AudioFormat,
				SampleRate:  a.active.SampleRate,
				Timestamp:   a.active.StartTime,
			})
		}
	})
}

// Unsubscribe removes a stream subscriber. The participant stays in the
// roster: disconnecting is not leaving.
func (a *Agent) Unsubscribe(ctx context.Context, userID string) error {
	return a.do(ctx, func() {
		delete(a.subscribers, userID)
	})
}

// Join updates the roster after a successful store join and announces the
// participant to subscribers.
func (a *Agent) Join(ctx context.Context, p *models.Participant) error {
	return a.do(ctx, func() {
		state, ok := a.roster[p.UserID]
		if !ok {
			state = &participantState{userID: p.UserID}
			a.roster[p.UserID] = state
			a.broadcast(Event{
				Type:        EventParticipantJoined,
				ChannelUUID: a.channelUUID,
				UserID:      p.UserID,
				Username:    p.Username,
				Timestamp:   time.Now().UTC(),
			}, p.UserID)
		}
		state.username = p.Username
		state.joinTime = p.JoinTime
		state.lastSeen = p.LastSeen
		state.quality = p.ConnectionQuality
		if p.EphemeralPushToken != nil {
			state.pushToken = *p.EphemeralPushToken
		}
	})
}

// Leave removes the participant from the roster and drops any stream
// subscription. The store row is removed by the caller.
func (a *Agent) Leave(ctx context.Context, userID string) error {
	return a.do(ctx, func() {
		state, ok := a.roster[userID]
		if !ok {
			return
		}
		username := state.username
		delete(a.roster, userID)
		delete(a.subscribers, userID)

		// A leaving transmitter abandons the session
		if a.active != nil && a.active.UserID == userID {
			a.endTransmission(ctx, models.EndReasonError, 0)
		}

		a.broadcast(Event{
			Type:        EventParticipantLeft,
			ChannelUUID: a.channelUUID,
			UserID:      userID,
			Username:    username,
			Reason:      "left",
			Timestamp:   time.Now().UTC(),
		}, "")
	})
}

// UpdateToken refreshes a participant's push token in the roster.
func (a *Agent) UpdateToken(ctx context.Context, userID, token string) error {
	return a.do(ctx, func() {
		if state, ok := a.roster[userID]; ok {
			state.pushToken = token
			state.lastSeen = time.Now().UTC()
		}
	})
}

// Heartbeat refreshes last_seen in the roster and the store.
func (a *Agent) Heartbeat(ctx context.Context, userID string) error {
	var opErr error
	err := a.do(ctx, func() {
		state, ok := a.roster[userID]
		if !ok {
			opErr = errs.New(errs.KindForbidden, "Not a participant of this channel")
			return
		}
		state.lastSeen = time.Now().UTC()
		if err := a.store.TouchParticipant(ctx, a.channelUUID, userID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to persist heartbeat")
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// UpdateLocation stores a position report and refreshes liveness.
func (a *Agent) UpdateLocation(ctx context.Context, userID string, location *models.ParticipantLocation) error {
	var opErr error
	err := a.do(ctx, func() {
		state, ok := a.roster[userID]
		if !ok {
			opErr = errs.New(errs.KindForbidden, "Not a participant of this channel")
			return
		}
		state.lastSeen = time.Now().UTC()
		if err := a.store.UpdateParticipantLocation(ctx, a.channelUUID, userID, location); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to persist location update")
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// UpdateQuality stores a connection quality report.
func (a *Agent) UpdateQuality(ctx context.Context, userID string, quality models.ConnectionQuality) error {
	var opErr error
	err := a.do(ctx, func() {
		state, ok := a.roster[userID]
		if !ok {
			opErr = errs.New(errs.KindForbidden, "Not a participant of this channel")
			return
		}
		if !quality.Valid() {
			opErr = errs.New(errs.KindInvalid, "Invalid connection quality")
			return
		}
		state.quality = quality
		state.lastSeen = time.Now().UTC()
		if err := a.store.UpdateParticipantQuality(ctx, a.channelUUID, userID, quality); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to persist quality report")
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// Emergency broadcasts an emergency alert to every subscriber (the sender
// included), pushes it at the gateway's highest priority, and records the
// audit event.
func (a *Agent) Emergency(ctx context.Context, userID, message string) error {
	var opErr error
	err := a.do(ctx, func() {
		state, ok := a.roster[userID]
		if !ok {
			opErr = errs.New(errs.KindForbidden, "Not a participant of this channel")
			return
		}
		state.lastSeen = time.Now().UTC()

		a.store.LogEvent(ctx, a.channelUUID, userID, state.username, models.EventEmergency, message, nil)

		a.broadcast(Event{
			Type:        EventEmergencyAlert,
			ChannelUUID: a.channelUUID,
			UserID:      userID,
			Username:    state.username,
			Message:     message,
			Timestamp:   time.Now().UTC(),
		}, "")

		a.notifyPush(ctx, PushEventEmergency, "", state.username, userID)
	})
	if err != nil {
		return err
	}
	return opErr
}

// ParticipantCount returns the roster size.
func (a *Agent) ParticipantCount(ctx context.Context) (int, error) {
	var count int
	err := a.do(ctx, func() { count = len(a.roster) })
	return count, err
}

// tick enforces the transmission duration cap and evicts inactive
// participants. Runs on the inbox goroutine.
func (a *Agent) tick(ctx context.Context) {
	now := time.Now().UTC()

	if a.active != nil && now.Sub(a.active.StartTime) >= a.opts.MaxTransmissionDuration {
		logging.Info().
			Str("channel", a.channelUUID).
			Str("session", a.active.SessionID).
			Msg("transmission exceeded duration cap")
		a.endTransmission(ctx, models.EndReasonTimeout, 0)
	}

	for userID, state := range a.roster {
		if now.Sub(state.lastSeen) <= a.opts.ParticipantTimeout {
			continue
		}
		username := state.username
		delete(a.roster, userID)
		delete(a.subscribers, userID)

		if a.active != nil && a.active.UserID == userID {
			a.endTransmission(ctx, models.EndReasonTimeout, 0)
		}

		if err := a.store.EvictParticipant(ctx, a.channelUUID, userID, username); err != nil &&
			!errs.IsKind(err, errs.KindNotFound) {
			logging.Warn().Err(err).Str("user", userID).Msg("failed to evict participant")
		}
		metrics.ParticipantsEvicted.Inc()

		a.broadcast(Event{
			Type:        EventParticipantLeft,
			ChannelUUID: a.channelUUID,
			UserID:      userID,
			Username:    username,
			Reason:      "timeout",
			Timestamp:   now,
		}, "")

		logging.Info().
			Str("channel", a.channelUUID).
			Str("user", userID).
			Msg("participant evicted after inactivity timeout")
	}
}

// shutdown ends any active session with the shutdown reason and closes all
// subscriptions. Runs on the inbox goroutine as the loop exits.
func (a *Agent) shutdown(ctx context.Context) {
	if a.active != nil {
		a.endTransmission(ctx, models.EndReasonShutdown, 0)
	}
	for userID, sub := range a.subscribers {
		sub.CloseSlow()
		delete(a.subscribers, userID)
	}
}

// broadcast delivers an event to every subscriber except excludeUserID, in
// user-ID order for deterministic delivery. A subscriber whose queue is full
// is dropped, closed, and announced to the remaining subscribers as having
// left with the slow_consumer reason.
func (a *Agent) broadcast(event Event, excludeUserID string) {
	userIDs := make([]string, 0, len(a.subscribers))
	for userID := range a.subscribers {
		if userID == excludeUserID {
			continue
		}
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	var dropped []string
	for _, userID := range userIDs {
		sub := a.subscribers[userID]
		if !sub.Send(event) {
			dropped = append(dropped, userID)
		}
	}

	for _, userID := range dropped {
		sub, ok := a.subscribers[userID]
		if !ok {
			// Already removed by a nested broadcast
			continue
		}
		delete(a.subscribers, userID)
		sub.CloseSlow()
		metrics.SlowConsumersDropped.Inc()

		username := userID
		if state, ok := a.roster[userID]; ok {
			username = state.username
		}
		a.broadcast(Event{
			Type:        EventParticipantLeft,
			ChannelUUID: a.channelUUID,
			UserID:      userID,
			Username:    username,
			Reason:      "slow_consumer",
			Timestamp:   time.Now().UTC(),
		}, "")
	}
}

// notifyPush fans the event out to every non-sender roster member holding a
// push token.
func (a *Agent) notifyPush(ctx context.Context, event PushEvent, sessionID, initiatorUsername, senderID string) {
	if a.notifier == nil {
		return
	}
	var recipients []PushRecipient
	for userID, state := range a.roster {
		if userID == senderID || state.pushToken == "" {
			continue
		}
		recipients = append(recipients, PushRecipient{UserID: userID, Token: state.pushToken})
	}
	if len(recipients) > 0 {
		a.notifier.Notify(ctx, event, a.channelUUID, sessionID, initiatorUsername, recipients)
	}
}

// notifyOffline fans out only to roster members with no live stream
// subscription; subscribers already receive the chunks themselves.
func (a *Agent) notifyOffline(ctx context.Context, event PushEvent, sessionID, initiatorUsername, senderID string) {
	if a.notifier == nil {
		return
	}
	var recipients []PushRecipient
	for userID, state := range a.roster {
		if userID == senderID || state.pushToken == "" {
			continue
		}
		if _, streaming := a.subscribers[userID]; streaming {
			continue
		}
		recipients = append(recipients, PushRecipient{UserID: userID, Token: state.pushToken})
	}
	if len(recipients) > 0 {
		a.notifier.Notify(ctx, event, a.channelUUID, sessionID, initiatorUsername, recipients)
	}
}

// countNotifiable counts the unique non-sender participants reachable on
// either plane: a live stream subscription or a push token.
func (a *Agent) countNotifiable(senderID string) int {
	count := 0
	for userID, state := range a.roster {
		if userID == senderID {
			continue
		}
		if _, streaming := a.subscribers[userID]; streaming || state.pushToken != "" {
			count++
		}
	}
	return count
}
