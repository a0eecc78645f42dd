// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package playback normalizes concrete player backends into one event
// vocabulary and accessor contract.
//
// Two adapters exist: EmbeddedPlayerAdapter for IFrame-style embedded
// players that only report coarse state transitions, and
// NativeMediaAdapter for native media elements that report the full
// play/pause/seeking/seeked/ratechange/ended vocabulary. Both must be
// observably equivalent to everything downstream.
//
// Players live in the client; adapters are fed the raw messages the
// client relays and translate them into normalized events. Corrections
// (forced seeks from the anti-skip guard) travel the other way through
// a CommandSender.
package playback

import (
	"errors"
	"time"
)

// ErrUnavailable indicates the underlying player never initialized
// (script load timeout, unreachable media). The session degrades rather
// than crashing: the error is surfaced to the user and autosave is
// disabled for the unit.
var ErrUnavailable = errors.New("playback: player unavailable")

// ErrClosed indicates the source was torn down.
var ErrClosed = errors.New("playback: source closed")

// EventKind identifies a normalized player transition.
type EventKind string

// Normalized event vocabulary.
const (
	KindPlay        EventKind = "play"
	KindPause       EventKind = "pause"
	KindSeeking     EventKind = "seeking"
	KindSeeked      EventKind = "seeked"
	KindRateChange  EventKind = "rate_change"
	KindEnded       EventKind = "ended"
	KindTimeUpdate  EventKind = "time_update"
	KindUnavailable EventKind = "unavailable"
)

// Event is one normalized player transition.
type Event struct {
	Kind EventKind
	At   time.Time

	// SeekFrom and SeekTo are set for KindSeeking/KindSeeked.
	SeekFrom float64
	SeekTo   float64

	// Rate is set for KindRateChange.
	Rate float64

	// Position is the player position at event time, in seconds.
	Position float64
}

// Command is an instruction sent back to the client's player.
type Command struct {
	Action   string  `json:"action"`
	Position float64 `json:"position,omitempty"`
}

// Command actions.
const (
	CommandSeek  = "seek"
	CommandPause = "pause"
)

// CommandSender delivers a command to the concrete player. Implemented
// by the transport layer (WebSocket connection).
type CommandSender func(Command) error

// Listener receives normalized events. A source has exactly one
// listener at a time; it is swapped per session, never shared across
// concurrent units.
type Listener func(Event)

// Source is the uniform contract over a concrete player backend.
//
// Accessor methods reflect the most recently observed player state.
// Duration returns ok=false until the player has reported one; callers
// must treat an unknown duration as "skip dependent calculations", not
// as zero.
type Source interface {
	// SetListener registers the normalized-event listener. Passing nil
	// detaches the current listener.
	SetListener(fn Listener)

	// CurrentTime returns the last observed playback position, seconds.
	CurrentTime() float64

	// Duration returns the media duration if known.
	Duration() (float64, bool)

	// PlaybackRate returns the current playback rate (1.0 = normal).
	PlaybackRate() float64

	// Playing reports whether the player is currently playing.
	Playing() bool

	// Ready reports whether the player has initialized (reported at
	// least one state message).
	Ready() bool

	// SeekTo forcibly repositions the player. Used by the anti-skip
	// guard; returns ErrClosed after teardown.
	SeekTo(position float64) error

	// MarkUnavailable transitions the source into the failed state and
	// emits KindUnavailable. Called when player initialization times out.
	MarkUnavailable()

	// Close detaches the listener and rejects further commands. No
	// event is delivered after Close returns.
	Close()
}
