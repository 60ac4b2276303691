// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package hub

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendQueueSize bounds the per-connection queue. Overflow closes the
	// connection with the slow_consumer reason.
	sendQueueSize = 64
)

// Client message types accepted on the stream.
const (
	ClientMessageHeartbeat      = "heartbeat"
	ClientMessageLocationUpdate = "location_update"
	ClientMessageQualityReport  = "quality_report"
	ClientMessageEmergency      = "emergency"
)

// clientMessage is one upstream frame from a subscriber.
type clientMessage struct {
	Type     string                      `json:"type"`
	Location *models.ParticipantLocation `json:"location,omitempty"`
	Quality  models.ConnectionQuality    `json:"quality,omitempty"`
	Message  string                      `json:"message,omitempty"`
}

// serverMessage is one downstream frame. AudioData is base64; the agent
// hands the hub raw bytes and encoding happens only here, at the JSON
// boundary.
type serverMessage struct {
	Type        string             `json:"type"`
	ChannelUUID string             `json:"channel_uuid,omitempty"`
	SessionID   string             `json:"session_id,omitempty"`
	UserID      string             `json:"user_id,omitempty"`
	Username    string             `json:"username,omitempty"`
	AudioFormat models.AudioFormat `json:"audio_format,omitempty"`
	SampleRate  int                `json:"sample_rate,omitempty"`
	Sequence    int                `json:"sequence,omitempty"`
	AudioData   string             `json:"audio_data,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Message     string             `json:"message,omitempty"`
	Error       string             `json:"error,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Conn is one stream subscriber connection. It implements agent.Subscriber.
type Conn struct {
	hub          *Hub
	channelAgent *agent.Agent
	ws           *websocket.Conn

	channelUUID string
	userID      string
	username    string

	send      chan agent.Event
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(h *Hub, channelAgent *agent.Agent, ws *websocket.Conn, channelUUID, userID, username string) *Conn {
	return &Conn{
		hub:          h,
		channelAgent: channelAgent,
		ws:           ws,
		channelUUID:  channelUUID,
		userID:       userID,
		username:     username,
		send:         make(chan agent.Event, sendQueueSize),
		closed:       make(chan struct{}),
	}
}

// UserID implements agent.Subscriber.
func (c *Conn) UserID() string {
	return c.userID
}

// Send implements agent.Subscriber. Non-blocking: a full queue returns
// false and the agent drops the subscription.
func (c *Conn) Send(event agent.Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// CloseSlow implements agent.Subscriber.
func (c *Conn) CloseSlow() {
	c.close(websocket.ClosePolicyViolation, "slow_consumer")
}

// start launches the read and write pumps.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

// close shuts the connection down exactly once.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
		c.hub.drop(c)
	})
}

// readPump forwards client messages to the channel agent until the
// connection drops. Disconnection removes the subscription but does not
// leave the channel.
func (c *Conn) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.channelAgent.Unsubscribe(ctx, c.userID)
		c.close(websocket.CloseNormalClosure, "")
		logging.Debug().
			Str("channel", c.channelUUID).
			Str("user", c.userID).
			Msg("stream subscriber disconnected")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Str("user", c.userID).Msg("unexpected stream close")
			}
			return
		}
		c.handleClientMessage(msg)
	}
}

// handleClientMessage dispatches one upstream frame to the agent.
func (c *Conn) handleClientMessage(msg clientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch msg.Type {
	case ClientMessageHeartbeat:
		err = c.channelAgent.Heartbeat(ctx, c.userID)
	case ClientMessageLocationUpdate:
		err = c.channelAgent.UpdateLocation(ctx, c.userID, msg.Location)
	case ClientMessageQualityReport:
		err = c.channelAgent.UpdateQuality(ctx, c.userID, msg.Quality)
	case ClientMessageEmergency:
		err = c.channelAgent.Emergency(ctx, c.userID, msg.Message)
	default:
		c.sendError("Unknown message type: " + msg.Type)
		return
	}

	if err != nil {
		c.sendError(err.Error())
	}
}

// sendError enqueues an error frame directly on the write channel by
// wrapping it into an event the write pump recognizes.
func (c *Conn) sendError(message string) {
	select {
	case c.send <- agent.Event{Type: "error", Message: message, Timestamp: time.Now().UTC()}:
	default:
	}
}

// writePump serializes agent events onto the wire in queue order, keeping
// the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close(websocket.CloseNormalClosure, "")
	}()

	for {
		select {
		case <-c.closed:
			return

		case event := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteJSON(wireMessage(event)); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wireMessage converts an agent event to its wire form, encoding audio
// payloads to base64.
func wireMessage(event agent.Event) serverMessage {
	msg := serverMessage{
		Type:        string(event.Type),
		ChannelUUID: event.ChannelUUID,
		SessionID:   event.SessionID,
		UserID:      event.UserID,
		Username:    event.Username,
		AudioFormat: event.AudioFormat,
		SampleRate:  event.SampleRate,
		Sequence:    event.Sequence,
		Reason:      event.Reason,
		Timestamp:   event.Timestamp,
	}
	if event.Type == "error" {
		msg.Error = event.Message
	} else {
		msg.Message = event.Message
	}
	if len(event.AudioData) > 0 {
		msg.AudioData = base64.StdEncoding.EncodeToString(event.AudioData)
	}
	return msg
}
