// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package guard implements the anti-skip watermark: the furthest point
// in a unit a learner has legitimately reached. Playback reported beyond
// the watermark plus a jitter buffer is clamped back.
//
// The guard is a deliberate UX deterrent, not a security boundary; a
// determined client can still lie about positions, and nothing
// server-side treats the watermark as proof of viewing.
package guard

import "sync"

// DefaultBufferSeconds tolerates network and codec jitter between the
// reported position and the watermark before a jump counts as a skip.
const DefaultBufferSeconds = 2.0

// Action is the guard's verdict for one observed position.
type Action int

const (
	// ActionNone: position at or behind the watermark; nothing to do.
	ActionNone Action = iota

	// ActionAdvance: position legitimately ahead; watermark moved up.
	ActionAdvance

	// ActionClamp: position jumped past the watermark plus buffer; the
	// player must be forced back to the watermark.
	ActionClamp
)

// Decision is the outcome of observing one playback position.
type Decision struct {
	Action Action

	// Target is the position to force-seek to when Action is ActionClamp.
	Target float64
}

// Guard tracks the monotonic high-water mark for one unit session.
//
// The bypass capability is fixed at construction (reviewers and admins
// scrub freely); the guard itself never inspects roles.
type Guard struct {
	mu        sync.Mutex
	watermark float64
	buffer    float64
	bypass    bool
}

// New creates a guard seeded from the unit's persisted last position.
func New(initialWatermark, bufferSeconds float64, bypass bool) *Guard {
	if bufferSeconds <= 0 {
		bufferSeconds = DefaultBufferSeconds
	}
	if initialWatermark < 0 {
		initialWatermark = 0
	}
	return &Guard{
		watermark: initialWatermark,
		buffer:    bufferSeconds,
		bypass:    bypass,
	}
}

// Observe evaluates one sampled playback position against the watermark.
// Positions beyond watermark+buffer are clamped; positions between the
// watermark and the buffer edge advance the watermark (normal playback
// progress plus jitter).
func (g *Guard) Observe(currentTime float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.bypass {
		if currentTime > g.watermark {
			g.watermark = currentTime
		}
		return Decision{Action: ActionAdvance}
	}

	switch {
	case currentTime > g.watermark+g.buffer:
		return Decision{Action: ActionClamp, Target: g.watermark}
	case currentTime > g.watermark:
		g.watermark = currentTime
		return Decision{Action: ActionAdvance}
	default:
		return Decision{Action: ActionNone}
	}
}

// Watermark returns the current high-water mark.
func (g *Guard) Watermark() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watermark
}

// Bypassed reports whether the guard was constructed with the bypass
// capability.
func (g *Guard) Bypassed() bool {
	return g.bypass
}
