// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"net/http"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/validation"
)

// JoinChannel handles POST /channels/{uuid}/join. Requires access:{uuid} or
// admin:api. Joining twice refreshes the membership and returns the updated
// record.
func (h *Handler) JoinChannel(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)
	if err := h.resolver.RequireChannelAccess(subject, channelUUID); err != nil {
		respondError(w, r, err)
		return
	}

	// The body is optional: a bare join is valid
	var req models.JoinChannelRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if req.Location != nil {
			if verr := validation.ValidateStruct(req.Location); verr != nil {
				respondInvalid(w, verr.Error())
				return
			}
		}
	}

	participant, _, err := h.store.JoinChannel(r.Context(), channelUUID, subject.ID,
		subject.Username, req.Location, req.EphemeralPushToken, req.DeviceInfo)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Mirror the membership into the live agent so subscribers hear about
	// the newcomer.
	channelAgent, err := h.registry.Get(r.Context(), channelUUID)
	if err == nil {
		if aerr := channelAgent.Join(r.Context(), participant); aerr != nil {
			logging.Ctx(r.Context()).Warn().Err(aerr).Msg("failed to mirror join into agent")
		}
	}

	ch, err := h.store.GetChannel(r.Context(), channelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	count, err := h.store.CountParticipants(r.Context(), channelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, models.JoinChannelResponse{
		Participant: participant,
		ChannelInfo: models.ChannelInfo{
			UUID:                ch.UUID,
			Name:                ch.Name,
			Type:                ch.Type,
			MaxParticipants:     ch.MaxParticipants,
			CurrentParticipants: count,
		},
	})
}

// LeaveChannel handles POST|DELETE /channels/{uuid}/leave.
func (h *Handler) LeaveChannel(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)
	if err := h.resolver.RequireChannelAccess(subject, channelUUID); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.store.LeaveChannel(r.Context(), channelUUID, subject.ID, subject.Username); err != nil {
		respondError(w, r, err)
		return
	}

	if channelAgent, ok := h.registry.Lookup(channelUUID); ok {
		if aerr := channelAgent.Leave(r.Context(), subject.ID); aerr != nil {
			logging.Ctx(r.Context()).Warn().Err(aerr).Msg("failed to mirror leave into agent")
		}
	}

	respondSuccess(w, map[string]interface{}{"left": true})
}

// GetParticipants handles GET /channels/{uuid}/participants.
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)
	if err := h.resolver.RequireChannelAccess(subject, channelUUID); err != nil {
		respondError(w, r, err)
		return
	}

	participants, err := h.store.GetParticipants(r.Context(), channelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, map[string]interface{}{
		"participants": participants,
		"total_count":  len(participants),
	})
}

// UpdateToken handles PUT|POST /channels/{uuid}/update-token, refreshing
// the caller's ephemeral push token and last_seen.
func (h *Handler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)
	if err := h.resolver.RequireChannelAccess(subject, channelUUID); err != nil {
		respondError(w, r, err)
		return
	}

	var req models.UpdateTokenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}

	if err := h.store.UpdateParticipantPushToken(r.Context(), channelUUID, subject.ID, req.EphemeralPushToken); err != nil {
		respondError(w, r, err)
		return
	}

	if channelAgent, ok := h.registry.Lookup(channelUUID); ok {
		if aerr := channelAgent.UpdateToken(r.Context(), subject.ID, req.EphemeralPushToken); aerr != nil {
			logging.Ctx(r.Context()).Warn().Err(aerr).Msg("failed to mirror token update into agent")
		}
	}

	respondSuccess(w, map[string]interface{}{"updated": true})
}
