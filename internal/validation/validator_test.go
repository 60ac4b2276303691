// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package validation

import (
	"strings"
	"testing"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

func TestValidateStartTransmissionRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.PTTStartTransmissionRequest
		wantErr string
	}{
		{
			name: "valid",
			req: models.PTTStartTransmissionRequest{
				ChannelUUID: "8879f616-d468-4793-afcd-d66f0cea4651",
				AudioFormat: models.AudioFormatAACLC, SampleRate: 48000,
				NetworkQuality: models.QualityGood,
			},
		},
		{
			name: "missing channel",
			req: models.PTTStartTransmissionRequest{
				AudioFormat: models.AudioFormatOpus, SampleRate: 48000,
				NetworkQuality: models.QualityGood,
			},
			wantErr: "ChannelUUID is required",
		},
		{
			name: "bad audio format",
			req: models.PTTStartTransmissionRequest{
				ChannelUUID: "8879f616-d468-4793-afcd-d66f0cea4651",
				AudioFormat: "mp3", SampleRate: 48000, NetworkQuality: models.QualityGood,
			},
			wantErr: "must be one of",
		},
		{
			name: "bad quality",
			req: models.PTTStartTransmissionRequest{
				ChannelUUID: "8879f616-d468-4793-afcd-d66f0cea4651",
				AudioFormat: models.AudioFormatPCM, SampleRate: 16000, NetworkQuality: "great",
			},
			wantErr: "must be one of",
		},
		{
			name: "zero sample rate",
			req: models.PTTStartTransmissionRequest{
				ChannelUUID: "8879f616-d468-4793-afcd-d66f0cea4651",
				AudioFormat: models.AudioFormatPCM, NetworkQuality: models.QualityPoor,
			},
			wantErr: "SampleRate is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateChunkRequest(t *testing.T) {
	valid := models.PTTAudioChunkRequest{
		SessionID: "ptt_x_y_1_z", AudioData: "AAAA", ChunkSequence: 1, ChunkSizeBytes: 3,
	}
	if err := ValidateStruct(&valid); err != nil {
		t.Errorf("valid chunk rejected: %v", err)
	}

	missing := models.PTTAudioChunkRequest{SessionID: "s", ChunkSequence: 1, ChunkSizeBytes: 3}
	if err := ValidateStruct(&missing); err == nil {
		t.Error("missing audio_data accepted")
	}

	zeroSeq := valid
	zeroSeq.ChunkSequence = 0
	if err := ValidateStruct(&zeroSeq); err == nil {
		t.Error("zero sequence accepted")
	}
}

func TestValidateEndRequest(t *testing.T) {
	if err := ValidateStruct(&models.PTTEndTransmissionRequest{
		SessionID: "s", TotalDurationMS: 5000,
	}); err != nil {
		t.Errorf("valid end rejected: %v", err)
	}

	// total_duration_ms <= 0 is Invalid
	if err := ValidateStruct(&models.PTTEndTransmissionRequest{
		SessionID: "s", TotalDurationMS: 0,
	}); err == nil {
		t.Error("zero duration accepted")
	}
	if err := ValidateStruct(&models.PTTEndTransmissionRequest{
		SessionID: "s", TotalDurationMS: -5,
	}); err == nil {
		t.Error("negative duration accepted")
	}
}

func TestValidateCreateChannelRequest(t *testing.T) {
	valid := models.CreateChannelRequest{Name: "Chamonix", Type: models.ChannelTypeSiteLocal}
	if err := ValidateStruct(&valid); err != nil {
		t.Errorf("valid create rejected: %v", err)
	}

	badType := models.CreateChannelRequest{Name: "X", Type: "thermal"}
	if err := ValidateStruct(&badType); err == nil {
		t.Error("bad type accepted")
	}

	tooMany := models.CreateChannelRequest{Name: "X", Type: models.ChannelTypeGeneral, MaxParticipants: 101}
	if err := ValidateStruct(&tooMany); err == nil {
		t.Error("max_participants 101 accepted")
	}
}

func TestValidateLocation(t *testing.T) {
	if err := ValidateStruct(&models.ParticipantLocation{Lat: 45.9, Lon: 6.8}); err != nil {
		t.Errorf("valid location rejected: %v", err)
	}
	if err := ValidateStruct(&models.ParticipantLocation{Lat: 95, Lon: 6.8}); err == nil {
		t.Error("latitude 95 accepted")
	}
	if err := ValidateStruct(&models.ParticipantLocation{Lat: 45, Lon: 200}); err == nil {
		t.Error("longitude 200 accepted")
	}
}
