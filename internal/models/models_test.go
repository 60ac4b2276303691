// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package models

import (
	"strings"
	"testing"
	"time"
)

func TestValidChannelUUID(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want bool
	}{
		{"lowercase v4", "8879f616-d468-4793-afcd-d66f0cea4651", true},
		{"uppercase v4", "AA11BB22-CC33-4444-A555-FF6677889900", true},
		{"mixed case", "Aa11Bb22-Cc33-4444-a555-Ff6677889900", true},
		{"not v4 version digit", "8879f616-d468-0793-afcd-d66f0cea4651", false},
		{"bad variant nibble", "8879f616-d468-4793-cfcd-d66f0cea4651", false},
		{"no dashes", "8879f616d4684793afcdd66f0cea4651", false},
		{"too short", "8879f616-d468-4793-afcd", false},
		{"empty", "", false},
		{"garbage", "not-a-uuid-at-all-nope-000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidChannelUUID(tt.uuid); got != tt.want {
				t.Errorf("ValidChannelUUID(%q) = %v, want %v", tt.uuid, got, tt.want)
			}
		})
	}
}

func TestNormalizeUUID(t *testing.T) {
	got := NormalizeUUID("  AA11BB22-CC33-4444-A555-FF6677889900 ")
	want := "aa11bb22-cc33-4444-a555-ff6677889900"
	if got != want {
		t.Errorf("NormalizeUUID() = %q, want %q", got, want)
	}
}

func TestValidVHFFrequency(t *testing.T) {
	tests := []struct {
		freq string
		want bool
	}{
		{"143.9875", true},
		{"150.000", true},
		{"171.1234", true},
		{"", true}, // optional
		{"118.500", false},
		{"180.000", false},
		{"143.98", false},
		{"143.98755", false},
		{"abc.def", false},
	}

	for _, tt := range tests {
		t.Run(tt.freq, func(t *testing.T) {
			if got := ValidVHFFrequency(tt.freq); got != tt.want {
				t.Errorf("ValidVHFFrequency(%q) = %v, want %v", tt.freq, got, tt.want)
			}
		})
	}
}

func TestChannelTypeValid(t *testing.T) {
	for _, valid := range []ChannelType{
		ChannelTypeSiteLocal, ChannelTypeEmergency, ChannelTypeGeneral,
		ChannelTypeCrossCountry, ChannelTypeInstructors,
	} {
		if !valid.Valid() {
			t.Errorf("type %q should be valid", valid)
		}
	}
	for _, invalid := range []ChannelType{"", "thermal", "SITE_LOCAL"} {
		if invalid.Valid() {
			t.Errorf("type %q should be invalid", invalid)
		}
	}
}

func TestNewSessionID(t *testing.T) {
	channel := "8879f616-d468-4793-afcd-d66f0cea4651"
	start := time.Now()
	sessionID := NewSessionID(channel, "user-1", start)

	if !strings.HasPrefix(sessionID, "ptt_"+channel+"_user-1_") {
		t.Errorf("unexpected session ID shape: %q", sessionID)
	}
	if parts := strings.Split(sessionID, "_"); len(parts) < 5 {
		t.Errorf("session ID has %d segments, want >= 5", len(parts))
	}

	other := NewSessionID(channel, "user-1", start)
	if other == sessionID {
		t.Error("two session IDs for the same instant must differ")
	}
}

func TestParseSessionChannel(t *testing.T) {
	channel := "8879f616-d468-4793-afcd-d66f0cea4651"

	tests := []struct {
		name      string
		sessionID string
		wantUUID  string
		wantOK    bool
	}{
		{"valid", "ptt_" + channel + "_user-1_1700000000000_ab12cd34", channel, true},
		{"uppercase channel segment", "ptt_" + strings.ToUpper(channel) + "_u_1_r", channel, true},
		{"wrong prefix", "rtp_" + channel + "_u_1_r", "", false},
		{"too few segments", "ptt_" + channel + "_user", "", false},
		{"channel segment not a uuid", "ptt_banana_u_1_r", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSessionChannel(tt.sessionID)
			if ok != tt.wantOK || got != tt.wantUUID {
				t.Errorf("ParseSessionChannel(%q) = (%q, %v), want (%q, %v)",
					tt.sessionID, got, ok, tt.wantUUID, tt.wantOK)
			}
		})
	}
}

func TestCoordinatesInRange(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"chamonix", Coordinates{Lat: 45.929681, Lon: 6.876345}, true},
		{"poles", Coordinates{Lat: 90, Lon: 180}, true},
		{"lat too high", Coordinates{Lat: 90.1, Lon: 0}, false},
		{"lon too low", Coordinates{Lat: 0, Lon: -180.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.InRange(); got != tt.want {
				t.Errorf("InRange(%+v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestAudioFormatAndQuality(t *testing.T) {
	for _, f := range []AudioFormat{AudioFormatAACLC, AudioFormatOpus, AudioFormatPCM} {
		if !f.Valid() {
			t.Errorf("format %q should be valid", f)
		}
	}
	if AudioFormat("mp3").Valid() {
		t.Error("mp3 should be invalid")
	}
	for _, q := range []ConnectionQuality{QualityPoor, QualityFair, QualityGood, QualityExcellent} {
		if !q.Valid() {
			t.Errorf("quality %q should be valid", q)
		}
	}
	if ConnectionQuality("great").Valid() {
		t.Error("quality 'great' should be invalid")
	}
}
