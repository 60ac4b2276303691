// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package store

import "github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"

// Error constructors shared by the store operations. Messages are
// client-facing; the API layer surfaces them verbatim in the envelope.

func errChannelNotFound() *errs.Error {
	return errs.New(errs.KindNotFound, "Channel not found")
}

func errChannelFull() *errs.Error {
	return errs.New(errs.KindConflict, "Channel is full")
}

func errNotParticipant() *errs.Error {
	return errs.New(errs.KindNotFound, "Not a participant of this channel")
}

func errUUIDExists() *errs.Error {
	return errs.New(errs.KindConflict, "Channel UUID already exists")
}
