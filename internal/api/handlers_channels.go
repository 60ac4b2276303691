// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/validation"
)

// channelUUIDParam reads and normalizes the {uuid} path segment.
func channelUUIDParam(r *http.Request) string {
	return models.NormalizeUUID(chi.URLParam(r, "uuid"))
}

// ListChannels handles GET /channels. Filters: type, active, lat/lon/radius.
// Requires read:api (or admin:api).
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.resolver.RequireRead(subject); err != nil {
		respondError(w, r, err)
		return
	}

	filter, err := parseChannelFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Proximity radius is capped for non-admin callers
	if filter.RadiusKM > models.NonAdminProximityCapKM && !h.resolver.CanAdmin(subject) {
		filter.RadiusKM = models.NonAdminProximityCapKM
	}

	// The list snapshot is cached only for the unfiltered listing; filtered
	// queries go straight to the store.
	unfiltered := filter == (models.ChannelFilter{})
	if unfiltered {
		if cached, ok := h.cache.GetList(r.Context()); ok {
			respondSuccess(w, models.ChannelListResponse{Channels: cached, TotalCount: len(cached)})
			return
		}
	}

	channels, err := h.store.ListChannels(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if unfiltered {
		h.cache.SetList(r.Context(), channels)
	}

	respondSuccess(w, models.ChannelListResponse{Channels: channels, TotalCount: len(channels)})
}

// parseChannelFilter reads listing filters from the query string.
func parseChannelFilter(r *http.Request) (models.ChannelFilter, error) {
	var filter models.ChannelFilter
	q := r.URL.Query()

	if t := q.Get("type"); t != "" {
		ct := models.ChannelType(t)
		if !ct.Valid() {
			return filter, errs.New(errs.KindInvalid, "Invalid channel type")
		}
		filter.Type = ct
	}
	if a := q.Get("active"); a != "" {
		active, err := strconv.ParseBool(a)
		if err != nil {
			return filter, errs.New(errs.KindInvalid, "Invalid active flag")
		}
		filter.ActiveOnly = active
	}

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if (latStr == "") != (lonStr == "") {
		return filter, errs.New(errs.KindInvalid, "lat and lon must be provided together")
	}
	if latStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return filter, errs.New(errs.KindInvalid, "Invalid latitude")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return filter, errs.New(errs.KindInvalid, "Invalid longitude")
		}
		if !(models.Coordinates{Lat: lat, Lon: lon}).InRange() {
			return filter, errs.New(errs.KindInvalid, "Coordinates out of range")
		}
		filter.Lat, filter.Lon = &lat, &lon
		filter.RadiusKM = models.DefaultChannelListRadius
		if radStr := q.Get("radius"); radStr != "" {
			radius, err := strconv.ParseFloat(radStr, 64)
			if err != nil || radius <= 0 {
				return filter, errs.New(errs.KindInvalid, "Invalid radius")
			}
			filter.RadiusKM = radius
		}
	}

	return filter, nil
}

// GetChannel handles GET /channels/{uuid}. Admin callers additionally
// receive activity stats.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.resolver.RequireRead(subject); err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)

	ch, ok := h.cache.GetChannel(r.Context(), channelUUID)
	if !ok {
		ch, err = h.store.GetChannel(r.Context(), channelUUID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		h.cache.SetChannel(r.Context(), ch)
	}

	if !h.resolver.CanAdmin(subject) {
		respondSuccess(w, ch)
		return
	}

	stats, err := h.store.ChannelStats(r.Context(), channelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	count, err := h.store.CountParticipants(r.Context(), channelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, models.ChannelSummary{
		Channel:             *ch,
		CurrentParticipants: count,
		Stats:               stats,
	})
}

// CreateChannel handles POST /channels. Requires write:api; creating an
// emergency channel requires admin:api.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.resolver.RequireWrite(subject); err != nil {
		respondError(w, r, err)
		return
	}

	var req models.CreateChannelRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}
	if req.Type == models.ChannelTypeEmergency {
		if err := h.resolver.RequireAdmin(subject); err != nil {
			respondError(w, r, err)
			return
		}
	}

	ch, err := h.store.CreateChannel(r.Context(), &req, subject.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, ch)
}

// CreateChannelWithUUID handles POST /channels/with-uuid. Same rules as
// create; 400 when the UUID already exists.
func (h *Handler) CreateChannelWithUUID(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.resolver.RequireWrite(subject); err != nil {
		respondError(w, r, err)
		return
	}

	var req models.CreateChannelWithUUIDRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}
	if req.Type == models.ChannelTypeEmergency {
		if err := h.resolver.RequireAdmin(subject); err != nil {
			respondError(w, r, err)
			return
		}
	}

	ch, err := h.store.CreateChannelWithUUID(r.Context(), &req.CreateChannelRequest, subject.ID, req.UUID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, ch)
}

// UpdateChannel handles PUT /channels/{uuid}. Requires write:api; touching
// an emergency channel (or making one) requires admin:api.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.resolver.RequireWrite(subject); err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)

	var req models.UpdateChannelRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondInvalid(w, verr.Error())
		return
	}

	existing, err := h.store.GetChannel(r.Context(), channelUUID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	touchesEmergency := existing.Type == models.ChannelTypeEmergency ||
		(req.Type != nil && *req.Type == models.ChannelTypeEmergency)
	if touchesEmergency {
		if err := h.resolver.RequireAdmin(subject); err != nil {
			respondError(w, r, err)
			return
		}
	}

	ch, err := h.store.UpdateChannel(r.Context(), channelUUID, &req, subject.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, ch)
}

// DeleteChannel handles DELETE /channels/{uuid}[?hard=true]. Both variants
// require admin:api; hard delete purges the cascade and stops the channel's
// agent.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.resolver.RequireAdmin(subject); err != nil {
		respondError(w, r, err)
		return
	}

	channelUUID := channelUUIDParam(r)
	hard := r.URL.Query().Get("hard") == "true"

	if hard {
		h.registry.Remove(channelUUID)
		if err := h.store.HardDelete(r.Context(), channelUUID); err != nil {
			respondError(w, r, err)
			return
		}
		respondSuccess(w, map[string]interface{}{"uuid": channelUUID, "deleted": true, "hard": true})
		return
	}

	if err := h.store.SoftDelete(r.Context(), channelUUID, subject.ID); err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, map[string]interface{}{"uuid": channelUUID, "deleted": true, "hard": false})
}
