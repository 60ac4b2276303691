// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package hub

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/authz"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/store"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const streamChannel = "8879f616-d468-4793-afcd-d66f0cea4651"

// streamEnv wires a hub over real store and agents behind an httptest
// server that injects the subject named by the X-Test-User header.
type streamEnv struct {
	server   *httptest.Server
	store    *store.Store
	registry *agent.Registry
	hub      *Hub
}

func newStreamEnv(t *testing.T) *streamEnv {
	t.Helper()

	st, err := store.NewInMemory(50)
	if err != nil {
		t.Fatalf("store.NewInMemory: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, err := st.CreateChannelWithUUID(context.Background(), &models.CreateChannelRequest{
		Name: "Stream", Type: models.ChannelTypeGeneral,
	}, "creator", streamChannel); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	registry := agent.NewRegistry(st, nil, agent.Options{})
	t.Cleanup(registry.Shutdown)

	resolver := authz.NewResolver(&config.AuthConfig{
		ReadPermission: "read:api", WritePermission: "write:api",
		AdminPermission: "admin:api", TenantAdminPermission: "tenant:admin",
		AccessPermissionPrefix: "access:",
	})

	h := New(registry, resolver, st, []string{"*"})
	t.Cleanup(h.Shutdown)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Test-User")
		scopes := strings.Fields(r.Header.Get("X-Test-Scopes"))
		if userID != "" {
			subject := &auth.AuthSubject{ID: userID, Username: userID, Scopes: scopes}
			r = r.WithContext(auth.ContextWithAuthSubject(r.Context(), subject))
		}
		if err := h.HandleUpgrade(w, r, streamChannel); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &streamEnv{server: server, store: st, registry: registry, hub: h}
}

// joinMember adds a participant (with push token) to the channel and its
// agent.
func (env *streamEnv) joinMember(t *testing.T, userID string) {
	t.Helper()
	p, _, err := env.store.JoinChannel(context.Background(), streamChannel, userID, userID, nil, "tok-"+userID, nil)
	if err != nil {
		t.Fatalf("JoinChannel(%s): %v", userID, err)
	}
	a, err := env.registry.Get(context.Background(), streamChannel)
	if err != nil {
		t.Fatalf("registry.Get: %v", err)
	}
	if err := a.Join(context.Background(), p); err != nil {
		t.Fatalf("agent.Join: %v", err)
	}
}

// dial connects a websocket client as the given user.
func (env *streamEnv) dial(t *testing.T, userID, scopes string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/" + streamChannel
	header := http.Header{}
	header.Set("X-Test-User", userID)
	header.Set("X-Test-Scopes", scopes)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial as %s: %v (status %d)", userID, err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readMessage reads one frame with a deadline.
func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestUpgradeRequiresParticipantWithToken(t *testing.T) {
	env := newStreamEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/" + streamChannel

	// Not a participant
	header := http.Header{}
	header.Set("X-Test-User", "stranger")
	header.Set("X-Test-Scopes", "access:"+streamChannel)
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("non-participant upgrade should fail")
	}

	// Participant without a push token
	if _, _, err := env.store.JoinChannel(context.Background(), streamChannel,
		"tokenless", "tokenless", nil, "", nil); err != nil {
		t.Fatal(err)
	}
	header.Set("X-Test-User", "tokenless")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("tokenless upgrade should fail")
	}

	// No channel access scope
	env.joinMember(t, "scopeless")
	header.Set("X-Test-User", "scopeless")
	header.Set("X-Test-Scopes", "read:api")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("upgrade without access scope should fail")
	}
}

func TestStreamDeliversTransmission(t *testing.T) {
	env := newStreamEnv(t)
	env.joinMember(t, "speaker")
	env.joinMember(t, "listener")

	conn := env.dial(t, "listener", "access:"+streamChannel)

	a, err := env.registry.Get(context.Background(), streamChannel)
	if err != nil {
		t.Fatal(err)
	}

	startResp, err := a.Start(context.Background(), &models.PTTStartTransmissionRequest{
		ChannelUUID: streamChannel, AudioFormat: models.AudioFormatOpus,
		SampleRate: 48000, NetworkQuality: models.QualityGood,
	}, "speaker", "speaker")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload := []byte{0x10, 0x20, 0x30, 0x40}
	if _, err := a.Chunk(context.Background(), &models.PTTAudioChunkRequest{
		SessionID: startResp.SessionID, AudioData: "x", ChunkSequence: 1, ChunkSizeBytes: len(payload),
	}, payload, "speaker"); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if _, err := a.End(context.Background(), &models.PTTEndTransmissionRequest{
		SessionID: startResp.SessionID, TotalDurationMS: 1500,
	}, "speaker"); err != nil {
		t.Fatalf("End: %v", err)
	}

	// The listener observes started, the chunk (base64), then ended
	started := readMessage(t, conn)
	if started.Type != string(agent.EventTransmissionStarted) || started.SessionID != startResp.SessionID {
		t.Fatalf("first frame = %+v", started)
	}

	chunk := readMessage(t, conn)
	if chunk.Type != string(agent.EventAudioChunk) || chunk.Sequence != 1 {
		t.Fatalf("second frame = %+v", chunk)
	}
	decoded, err := base64.StdEncoding.DecodeString(chunk.AudioData)
	if err != nil {
		t.Fatalf("chunk payload is not base64: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Errorf("payload = %v, want %v", decoded, payload)
	}

	ended := readMessage(t, conn)
	if ended.Type != string(agent.EventTransmissionEnded) {
		t.Fatalf("third frame = %+v", ended)
	}
}

func TestClientMessagesReachAgent(t *testing.T) {
	env := newStreamEnv(t)
	env.joinMember(t, "pilot")

	conn := env.dial(t, "pilot", "access:"+streamChannel)

	// Heartbeat and location updates are accepted silently
	if err := conn.WriteJSON(clientMessage{Type: ClientMessageHeartbeat}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(clientMessage{
		Type:     ClientMessageLocationUpdate,
		Location: &models.ParticipantLocation{Lat: 45.93, Lon: 6.87},
	}); err != nil {
		t.Fatal(err)
	}

	// An unknown type produces an error frame
	if err := conn.WriteJSON(clientMessage{Type: "teleport"}); err != nil {
		t.Fatal(err)
	}
	msg := readMessage(t, conn)
	if msg.Type != "error" || !strings.Contains(msg.Error, "Unknown message type") {
		t.Fatalf("error frame = %+v", msg)
	}

	// The location update reached the store
	p, err := env.store.GetParticipant(context.Background(), streamChannel, "pilot")
	if err != nil {
		t.Fatal(err)
	}
	if p.Location == nil || p.Location.Lat != 45.93 {
		t.Errorf("location not persisted: %+v", p.Location)
	}
}

func TestEmergencyBroadcastsToAll(t *testing.T) {
	env := newStreamEnv(t)
	env.joinMember(t, "caller")
	env.joinMember(t, "watcher")

	callerConn := env.dial(t, "caller", "access:"+streamChannel)
	watcherConn := env.dial(t, "watcher", "access:"+streamChannel)

	if err := callerConn.WriteJSON(clientMessage{
		Type: ClientMessageEmergency, Message: "landing in trees",
	}); err != nil {
		t.Fatal(err)
	}

	// Emergency alerts reach every subscriber, the sender included
	for name, conn := range map[string]*websocket.Conn{"caller": callerConn, "watcher": watcherConn} {
		msg := readMessage(t, conn)
		if msg.Type != string(agent.EventEmergencyAlert) {
			t.Errorf("%s frame = %+v", name, msg)
		}
		if msg.Message != "landing in trees" || msg.UserID != "caller" {
			t.Errorf("%s alert content = %+v", name, msg)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"allowed", "https://app.example.com", true},
		{"disallowed", "https://evil.example.com", false},
		{"no origin header", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := check(r); got != tt.want {
				t.Errorf("check(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}

	wildcard := originChecker([]string{"*"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anything.example.com")
	if !wildcard(r) {
		t.Error("wildcard should allow any origin")
	}
}

func TestWireMessageEncodesAudio(t *testing.T) {
	event := agent.Event{
		Type:        agent.EventAudioChunk,
		ChannelUUID: streamChannel,
		SessionID:   "sess",
		Sequence:    7,
		AudioData:   []byte{1, 2, 3},
		Timestamp:   time.Now().UTC(),
	}
	msg := wireMessage(event)

	if msg.Type != "audio_chunk" || msg.Sequence != 7 {
		t.Errorf("wire = %+v", msg)
	}
	if msg.AudioData != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Errorf("audio_data = %q", msg.AudioData)
	}
}

func TestConnSendOverflow(t *testing.T) {
	conn := newConn(nil, nil, nil, streamChannel, "u", "u")

	for i := 0; i < sendQueueSize; i++ {
		if !conn.Send(agent.Event{Type: agent.EventAudioChunk, Sequence: i + 1}) {
			t.Fatalf("send %d should fit in the queue", i+1)
		}
	}
	if conn.Send(agent.Event{Type: agent.EventAudioChunk}) {
		t.Error("send beyond the queue bound should report overflow")
	}
}
