// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/agent"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/auth"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/authz"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/cache"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/hub"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/store"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const chamonix = "8879f616-d468-4793-afcd-d66f0cea4651"

// testEnv wires real components (in-memory store and cache, live agents)
// behind a router whose auth middleware injects the subject named by test
// headers instead of verifying tokens.
type testEnv struct {
	router  http.Handler
	store   *store.Store
	handler *Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Auth = config.AuthConfig{
		ReadPermission:         "read:api",
		WritePermission:        "write:api",
		AdminPermission:        "admin:api",
		TenantAdminPermission:  "tenant:admin",
		AccessPermissionPrefix: "access:",
	}
	cfg.PTT = config.PTTConfig{
		MaxTransmissionDuration: 30 * time.Second,
		ParticipantTimeout:      300 * time.Second,
		DefaultMaxParticipants:  50,
	}

	st, err := store.NewInMemory(50)
	if err != nil {
		t.Fatalf("store.NewInMemory: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	channelCache, err := cache.New(&config.CacheConfig{TTL: time.Minute, ListTTL: time.Minute})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { _ = channelCache.Close() })
	st.SetCache(channelCache)

	registry := agent.NewRegistry(st, nil, agent.Options{
		MaxTransmissionDuration: cfg.PTT.MaxTransmissionDuration,
		ParticipantTimeout:      cfg.PTT.ParticipantTimeout,
	})
	t.Cleanup(registry.Shutdown)

	resolver := authz.NewResolver(&cfg.Auth)
	streamHub := hub.New(registry, resolver, st, cfg.Server.CORSOrigins)
	handler := NewHandler(st, channelCache, registry, streamHub, resolver, cfg)

	// Test auth middleware: X-Test-User and X-Test-Scopes name the caller
	injectSubject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-Test-User")
			if userID == "" {
				respondJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
				return
			}
			subject := &auth.AuthSubject{
				ID:       userID,
				Username: userID,
				Scopes:   strings.Fields(r.Header.Get("X-Test-Scopes")),
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuthSubject(r.Context(), subject)))
		})
	}

	chiMw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://app.parawave.example"},
		RateLimitDisabled:  true,
	})

	r := chi.NewRouter()
	r.Use(chiMw.CORS())
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found"))
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.Health)
		r.Route("/channels", func(r chi.Router) {
			r.Use(injectSubject)
			r.Get("/", handler.ListChannels)
			r.Post("/", handler.CreateChannel)
			r.Post("/with-uuid", handler.CreateChannelWithUUID)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", handler.GetChannel)
				r.Put("/", handler.UpdateChannel)
				r.Delete("/", handler.DeleteChannel)
				r.Post("/join", handler.JoinChannel)
				r.Post("/leave", handler.LeaveChannel)
				r.Get("/participants", handler.GetParticipants)
				r.Post("/update-token", handler.UpdateToken)
			})
		})
		r.Route("/transmissions", func(r chi.Router) {
			r.Use(injectSubject)
			r.Post("/start", handler.StartTransmission)
			r.Post("/{session_id}/chunk", handler.TransmitChunk)
			r.Post("/{session_id}/end", handler.EndTransmission)
			r.Get("/active/{channel_uuid}", handler.ActiveTransmission)
		})
	})

	return &testEnv{router: r, store: st, handler: handler}
}

// envelope mirrors models.APIResponse with raw data for per-test decoding.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
}

// call performs one request as the given user/scopes and decodes the
// envelope.
func (env *testEnv) call(t *testing.T, method, path, user, scopes string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Scopes", scopes)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

// createChannelAs provisions a channel through the API.
func (env *testEnv) createChannelAs(t *testing.T, name string) string {
	t.Helper()
	status, resp := env.call(t, http.MethodPost, "/api/v1/channels", "creator", "write:api",
		models.CreateChannelRequest{Name: name, Type: models.ChannelTypeGeneral})
	if status != http.StatusCreated {
		t.Fatalf("create channel: status %d, error %q", status, resp.Error)
	}
	var ch models.Channel
	if err := json.Unmarshal(resp.Data, &ch); err != nil {
		t.Fatalf("decode channel: %v", err)
	}
	return ch.UUID
}

func TestCreateChannelEnvelope(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, http.MethodPost, "/api/v1/channels", "creator", "write:api",
		models.CreateChannelRequest{Name: "Planfait", Type: models.ChannelTypeSiteLocal})

	if status != http.StatusCreated {
		t.Fatalf("status = %d, error %q", status, resp.Error)
	}
	if !resp.Success || resp.Version != "1.0.0" || resp.Timestamp.IsZero() {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestCreateChannelRequiresWrite(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, http.MethodPost, "/api/v1/channels", "reader", "read:api",
		models.CreateChannelRequest{Name: "Nope", Type: models.ChannelTypeGeneral})
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (%s)", status, resp.Error)
	}
}

// Scenario: caller with only write:api creating an emergency channel is
// rejected with the admin-permission message.
func TestEmergencyChannelRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, http.MethodPost, "/api/v1/channels", "writer", "read:api write:api",
		models.CreateChannelRequest{Name: "Mayday", Type: models.ChannelTypeEmergency})

	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
	if !strings.Contains(resp.Error, "Admin permission required") {
		t.Errorf("error %q should contain 'Admin permission required'", resp.Error)
	}

	// Admin succeeds
	status, _ = env.call(t, http.MethodPost, "/api/v1/channels", "admin", "admin:api",
		models.CreateChannelRequest{Name: "Mayday", Type: models.ChannelTypeEmergency})
	if status != http.StatusCreated {
		t.Errorf("admin create status = %d, want 201", status)
	}
}

// Scenario: caller-supplied uppercase UUID is stored lowercase and remains
// addressable in the original case.
func TestUUIDNormalization(t *testing.T) {
	env := newTestEnv(t)
	upper := "AA11BB22-CC33-4444-A555-FF6677889900"
	lower := "aa11bb22-cc33-4444-a555-ff6677889900"

	body := map[string]interface{}{
		"uuid": upper, "name": "Landing Sud", "type": "general",
	}
	status, resp := env.call(t, http.MethodPost, "/api/v1/channels/with-uuid", "creator", "write:api", body)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, error %q", status, resp.Error)
	}
	var ch models.Channel
	if err := json.Unmarshal(resp.Data, &ch); err != nil {
		t.Fatal(err)
	}
	if ch.UUID != lower {
		t.Errorf("data.uuid = %q, want %q", ch.UUID, lower)
	}

	// GET with the original uppercase path returns the same record
	status, resp = env.call(t, http.MethodGet, "/api/v1/channels/"+upper, "creator", "read:api", nil)
	if status != http.StatusOK {
		t.Fatalf("GET status = %d", status)
	}
	if err := json.Unmarshal(resp.Data, &ch); err != nil {
		t.Fatal(err)
	}
	if ch.UUID != lower || ch.Name != "Landing Sud" {
		t.Errorf("round-trip = %+v", ch)
	}

	// Duplicate UUID is 400
	status, _ = env.call(t, http.MethodPost, "/api/v1/channels/with-uuid", "creator", "write:api", body)
	if status != http.StatusBadRequest {
		t.Errorf("duplicate status = %d, want 400", status)
	}
}

// transmitChunk posts one chunk of the given size for the session.
func (env *testEnv) transmitChunk(t *testing.T, user, sessionID string, seq, size int) (int, envelope) {
	t.Helper()
	payload := bytes.Repeat([]byte{0}, size)
	return env.call(t, http.MethodPost, "/api/v1/transmissions/"+sessionID+"/chunk", user, "access:"+chamonix,
		models.PTTAudioChunkRequest{
			SessionID:      sessionID,
			AudioData:      base64.StdEncoding.EncodeToString(payload),
			ChunkSequence:  seq,
			ChunkSizeBytes: size,
			TimestampMS:    time.Now().UnixMilli(),
		})
}

// Scenario: join, transmit three 1024-byte chunks, end.
func TestJoinTransmitEndHappyPath(t *testing.T) {
	env := newTestEnv(t)

	// Provision c1 at its canonical UUID
	status, resp := env.call(t, http.MethodPost, "/api/v1/channels/with-uuid", "creator", "write:api",
		map[string]interface{}{"uuid": chamonix, "name": "Chamonix", "type": "site_local"})
	if status != http.StatusCreated {
		t.Fatalf("provision: %d %q", status, resp.Error)
	}

	scopes := "read:api write:api access:" + chamonix

	// Join with a location
	status, resp = env.call(t, http.MethodPost, "/api/v1/channels/"+chamonix+"/join", "pilot-1", scopes,
		models.JoinChannelRequest{Location: &models.ParticipantLocation{Lat: 45.929681, Lon: 6.876345}})
	if status != http.StatusOK {
		t.Fatalf("join: %d %q", status, resp.Error)
	}
	var joined models.JoinChannelResponse
	if err := json.Unmarshal(resp.Data, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Participant == nil || joined.Participant.UserID != "pilot-1" {
		t.Fatalf("join participant = %+v", joined.Participant)
	}
	if joined.ChannelInfo.CurrentParticipants != 1 {
		t.Errorf("current_participants = %d", joined.ChannelInfo.CurrentParticipants)
	}

	// Start
	status, resp = env.call(t, http.MethodPost, "/api/v1/transmissions/start", "pilot-1", scopes,
		models.PTTStartTransmissionRequest{
			ChannelUUID: chamonix, AudioFormat: models.AudioFormatAACLC,
			SampleRate: 48000, NetworkQuality: models.QualityGood,
		})
	if status != http.StatusOK {
		t.Fatalf("start: %d %q", status, resp.Error)
	}
	var started models.PTTStartTransmissionResponse
	if err := json.Unmarshal(resp.Data, &started); err != nil {
		t.Fatal(err)
	}
	if started.SessionID == "" || started.MaxDuration != 30 {
		t.Fatalf("start response = %+v", started)
	}
	if !strings.Contains(started.WebsocketURL, "/api/v1/transmissions/ws/"+chamonix) {
		t.Errorf("websocket_url = %q", started.WebsocketURL)
	}

	// Three 1024-byte chunks
	var chunkResp models.PTTChunkResponse
	for seq := 1; seq <= 3; seq++ {
		status, resp = env.transmitChunk(t, "pilot-1", started.SessionID, seq, 1024)
		if status != http.StatusOK {
			t.Fatalf("chunk %d: %d %q", seq, status, resp.Error)
		}
		if err := json.Unmarshal(resp.Data, &chunkResp); err != nil {
			t.Fatal(err)
		}
	}
	if chunkResp.NextExpectedSequence != 4 {
		t.Errorf("final next_expected_sequence = %d, want 4", chunkResp.NextExpectedSequence)
	}

	// End
	status, resp = env.call(t, http.MethodPost, "/api/v1/transmissions/"+started.SessionID+"/end", "pilot-1", scopes,
		models.PTTEndTransmissionRequest{SessionID: started.SessionID, TotalDurationMS: 5000})
	if status != http.StatusOK {
		t.Fatalf("end: %d %q", status, resp.Error)
	}
	var ended models.PTTEndTransmissionResponse
	if err := json.Unmarshal(resp.Data, &ended); err != nil {
		t.Fatal(err)
	}
	if ended.ChunksReceived != 3 || ended.TotalBytes != 3072 {
		t.Errorf("end summary = %+v, want 3 chunks / 3072 bytes", ended)
	}
}

// Scenario: while a session is active, a second participant's start fails
// with an "already active" error.
func TestBusyChannel(t *testing.T) {
	env := newTestEnv(t)
	env.provisionChamonix(t)

	scopes := "access:" + chamonix
	env.join(t, "pilot-1", scopes)
	env.join(t, "pilot-2", scopes)

	env.start(t, "pilot-1", scopes)

	status, resp := env.call(t, http.MethodPost, "/api/v1/transmissions/start", "pilot-2", scopes,
		models.PTTStartTransmissionRequest{
			ChannelUUID: chamonix, AudioFormat: models.AudioFormatOpus,
			SampleRate: 48000, NetworkQuality: models.QualityFair,
		})
	if status != http.StatusBadRequest {
		t.Fatalf("second start: %d, want 400", status)
	}
	if !strings.Contains(resp.Error, "already active") {
		t.Errorf("error %q should contain 'already active'", resp.Error)
	}
}

// Scenario: chunks 1, 2, then 4 — the gap is rejected and the expected
// sequence stays 3.
func TestSequenceEnforcementOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.provisionChamonix(t)

	scopes := "access:" + chamonix
	env.join(t, "pilot-1", scopes)
	started := env.start(t, "pilot-1", scopes)

	for seq := 1; seq <= 2; seq++ {
		if status, resp := env.transmitChunk(t, "pilot-1", started.SessionID, seq, 256); status != http.StatusOK {
			t.Fatalf("chunk %d: %d %q", seq, status, resp.Error)
		}
	}

	status, resp := env.transmitChunk(t, "pilot-1", started.SessionID, 4, 256)
	if status != http.StatusBadRequest {
		t.Fatalf("gap chunk: %d, want 400", status)
	}
	if !strings.Contains(resp.Error, "Invalid chunk sequence") {
		t.Errorf("error %q should contain 'Invalid chunk sequence'", resp.Error)
	}

	// next_expected_sequence is still 3
	status, resp = env.transmitChunk(t, "pilot-1", started.SessionID, 3, 256)
	if status != http.StatusOK {
		t.Fatalf("chunk 3 after gap: %d %q", status, resp.Error)
	}
	var chunkResp models.PTTChunkResponse
	if err := json.Unmarshal(resp.Data, &chunkResp); err != nil {
		t.Fatal(err)
	}
	if chunkResp.NextExpectedSequence != 4 {
		t.Errorf("next = %d, want 4", chunkResp.NextExpectedSequence)
	}
}

func TestChunkSessionMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.provisionChamonix(t)
	scopes := "access:" + chamonix
	env.join(t, "pilot-1", scopes)
	started := env.start(t, "pilot-1", scopes)

	// Path and body disagree
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	status, resp := env.call(t, http.MethodPost, "/api/v1/transmissions/other-session/chunk", "pilot-1", scopes,
		models.PTTAudioChunkRequest{
			SessionID: started.SessionID, AudioData: payload, ChunkSequence: 1, ChunkSizeBytes: 3,
		})
	if status != http.StatusBadRequest || !strings.Contains(resp.Error, "mismatch") {
		t.Errorf("mismatch: %d %q", status, resp.Error)
	}

	// Bad base64 payload
	status, resp = env.call(t, http.MethodPost, "/api/v1/transmissions/"+started.SessionID+"/chunk", "pilot-1", scopes,
		models.PTTAudioChunkRequest{
			SessionID: started.SessionID, AudioData: "!!!not-base64!!!", ChunkSequence: 1, ChunkSizeBytes: 3,
		})
	if status != http.StatusBadRequest || !strings.Contains(resp.Error, "base64") {
		t.Errorf("bad base64: %d %q", status, resp.Error)
	}
}

func TestActiveTransmissionSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.provisionChamonix(t)
	scopes := "access:" + chamonix
	env.join(t, "pilot-1", scopes)

	// Idle channel answers null
	status, resp := env.call(t, http.MethodGet, "/api/v1/transmissions/active/"+chamonix, "pilot-1", scopes, nil)
	if status != http.StatusOK {
		t.Fatalf("active (idle): %d", status)
	}
	if string(resp.Data) != "" && string(resp.Data) != "null" {
		t.Errorf("idle data = %s, want null", resp.Data)
	}

	started := env.start(t, "pilot-1", scopes)

	status, resp = env.call(t, http.MethodGet, "/api/v1/transmissions/active/"+chamonix, "pilot-1", scopes, nil)
	if status != http.StatusOK {
		t.Fatalf("active: %d", status)
	}
	var snapshot models.TransmissionSession
	if err := json.Unmarshal(resp.Data, &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.SessionID != started.SessionID || snapshot.UserID != "pilot-1" {
		t.Errorf("snapshot = %+v", snapshot)
	}
}

func TestJoinRequiresChannelAccess(t *testing.T) {
	env := newTestEnv(t)
	env.provisionChamonix(t)

	status, _ := env.call(t, http.MethodPost, "/api/v1/channels/"+chamonix+"/join", "pilot-1", "read:api", nil)
	if status != http.StatusForbidden {
		t.Errorf("join without access scope: %d, want 403", status)
	}

	// admin:api bypasses the per-channel scope
	status, _ = env.call(t, http.MethodPost, "/api/v1/channels/"+chamonix+"/join", "boss", "admin:api", nil)
	if status != http.StatusOK {
		t.Errorf("admin join: %d, want 200", status)
	}
}

func TestSoftDeleteThenListAndGet(t *testing.T) {
	env := newTestEnv(t)
	uuid := env.createChannelAs(t, "Ephemeral")

	status, _ := env.call(t, http.MethodDelete, "/api/v1/channels/"+uuid, "boss", "admin:api", nil)
	if status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}

	// Active listing omits the channel
	status, resp := env.call(t, http.MethodGet, "/api/v1/channels/?active=true", "boss", "admin:api", nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	var list models.ChannelListResponse
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatal(err)
	}
	for _, summary := range list.Channels {
		if summary.UUID == uuid {
			t.Error("soft-deleted channel in active listing")
		}
	}

	// GET by UUID still finds it, inactive
	status, resp = env.call(t, http.MethodGet, "/api/v1/channels/"+uuid, "boss", "admin:api", nil)
	if status != http.StatusOK {
		t.Fatalf("get after soft delete: %d", status)
	}
	var summary models.ChannelSummary
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.IsActive {
		t.Error("is_active should be false after soft delete")
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	uuid := env.createChannelAs(t, "Protected")

	status, _ := env.call(t, http.MethodDelete, "/api/v1/channels/"+uuid, "writer", "write:api", nil)
	if status != http.StatusForbidden {
		t.Errorf("non-admin delete: %d, want 403", status)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	env := newTestEnv(t)
	status, resp := env.call(t, http.MethodGet, "/api/v1/nope", "user", "read:api", nil)
	if status != http.StatusNotFound || resp.Success {
		t.Errorf("unknown route: %d %+v", status, resp)
	}
}

func TestCORSPolicyViolation(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if rec.Body.String() != "CORS policy violation" {
		t.Errorf("body = %q", rec.Body.String())
	}

	// Allowed origin passes
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://app.parawave.example")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("allowed origin status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, http.MethodGet, "/api/v1/health", "", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health: %d", status)
	}
	var health models.HealthResponse
	if err := json.Unmarshal(resp.Data, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.APIVersion != "v1" {
		t.Errorf("health = %+v", health)
	}
	if health.Services["database"] != "healthy" || health.Services["cache"] != "healthy" {
		t.Errorf("services = %v", health.Services)
	}
}

// provisionChamonix creates the canonical test channel.
func (env *testEnv) provisionChamonix(t *testing.T) {
	t.Helper()
	status, resp := env.call(t, http.MethodPost, "/api/v1/channels/with-uuid", "creator", "write:api",
		map[string]interface{}{"uuid": chamonix, "name": "Chamonix", "type": "site_local"})
	if status != http.StatusCreated {
		t.Fatalf("provision: %d %q", status, resp.Error)
	}
}

// join adds a member through the API.
func (env *testEnv) join(t *testing.T, user, scopes string) {
	t.Helper()
	status, resp := env.call(t, http.MethodPost, "/api/v1/channels/"+chamonix+"/join", user, scopes, nil)
	if status != http.StatusOK {
		t.Fatalf("join %s: %d %q", user, status, resp.Error)
	}
}

// start begins a transmission through the API.
func (env *testEnv) start(t *testing.T, user, scopes string) models.PTTStartTransmissionResponse {
	t.Helper()
	status, resp := env.call(t, http.MethodPost, "/api/v1/transmissions/start", user, scopes,
		models.PTTStartTransmissionRequest{
			ChannelUUID: chamonix, AudioFormat: models.AudioFormatAACLC,
			SampleRate: 48000, NetworkQuality: models.QualityGood,
		})
	if status != http.StatusOK {
		t.Fatalf("start %s: %d %q", user, status, resp.Error)
	}
	var started models.PTTStartTransmissionResponse
	if err := json.Unmarshal(resp.Data, &started); err != nil {
		t.Fatal(err)
	}
	return started
}
