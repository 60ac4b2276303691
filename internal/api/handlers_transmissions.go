// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/validation"
)

// sessionIDParam reads the {session_id} path segment, percent-decoded
// before any comparison with the body.
func sessionIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "session_id")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// StartTransmission handles POST /transmissions/start.
func (h *Handler) StartTransmission(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req models.PTTStartTransmissionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}

	req.ChannelUUID = models.NormalizeUUID(req.ChannelUUID)
	if !models.ValidChannelUUID(req.ChannelUUID) {
		respondInvalid(w, "Invalid channel UUID")
		return
	}
	if err := h.resolver.RequireChannelAccess(subject, req.ChannelUUID); err != nil {
		respondError(w, r, err)
		return
	}

	channelAgent, err := h.registry.Get(r.Context(), req.ChannelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := channelAgent.Start(r.Context(), &req, subject.ID, subject.Username)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp.WebsocketURL = h.websocketURL(r, req.ChannelUUID)
	respondSuccess(w, resp)
}

// TransmitChunk handles POST /transmissions/{session_id}/chunk. The base64
// payload is decoded once here; the agent, hub, and store see raw bytes.
func (h *Handler) TransmitChunk(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req models.PTTAudioChunkRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}

	if sessionIDParam(r) != req.SessionID {
		respondInvalid(w, "Session ID mismatch between path and body")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		respondInvalid(w, "Invalid base64 audio data")
		return
	}

	channelAgent, err := h.registry.ResolveSession(req.SessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := channelAgent.Chunk(r.Context(), &req, payload, subject.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, resp)
}

// EndTransmission handles POST /transmissions/{session_id}/end.
func (h *Handler) EndTransmission(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req models.PTTEndTransmissionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}

	if sessionIDParam(r) != req.SessionID {
		respondInvalid(w, "Session ID mismatch between path and body")
		return
	}

	channelAgent, err := h.registry.ResolveSession(req.SessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := channelAgent.End(r.Context(), &req, subject.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, resp)
}

// ActiveTransmission handles GET /transmissions/active/{channel_uuid},
// returning the current transmission snapshot or null.
func (h *Handler) ActiveTransmission(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := models.NormalizeUUID(chi.URLParam(r, "channel_uuid"))
	if err := h.resolver.RequireChannelAccess(subject, channelUUID); err != nil {
		respondError(w, r, err)
		return
	}

	channelAgent, ok := h.registry.Lookup(channelUUID)
	if !ok {
		// No live agent means no active transmission; confirm the channel
		// exists before answering.
		if _, err := h.store.GetChannel(r.Context(), channelUUID); err != nil {
			respondError(w, r, err)
			return
		}
		respondSuccess(w, nil)
		return
	}

	snapshot, err := channelAgent.Status(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if snapshot == nil {
		respondSuccess(w, nil)
		return
	}
	respondSuccess(w, snapshot)
}

// StreamUpgrade handles GET /transmissions/ws/{channel_uuid}, delegating
// the handshake to the stream hub.
func (h *Handler) StreamUpgrade(w http.ResponseWriter, r *http.Request) {
	channelUUID := models.NormalizeUUID(chi.URLParam(r, "channel_uuid"))
	if !models.ValidChannelUUID(channelUUID) {
		respondError(w, r, errs.New(errs.KindInvalid, "Invalid channel UUID"))
		return
	}
	if err := h.streamHub.HandleUpgrade(w, r, channelUUID); err != nil {
		respondError(w, r, err)
	}
}
