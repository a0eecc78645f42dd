// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package engine converts the behavioral event stream into engagement
// metrics: the True Engagement Score, seek-back counts and rate,
// playback-speed penalties, and drop-off position.
//
// The engine is a stateful accumulator with no external I/O. ProcessEvent
// and Tick are total functions over current state plus input; malformed
// events (missing numeric payload fields) skip the dependent calculation
// instead of failing.
package engine

import (
	"sync"

	"github.com/viewguard/viewguard/internal/models"
)

// seekBackThreshold is the backward-seek magnitude, in seconds, treated
// as an interest signal. Smaller rewinds are instinctive corrections and
// do not count; forward seeks never count.
const seekBackThreshold = 5.0

// speedPenaltyRate is the playback rate at or above which viewing is
// considered skim-speed consumption.
const speedPenaltyRate = 2.0

// Speed weights for the True Engagement Score. Normal-speed viewing
// accrues full credit; 1.5x accrues most of it; skim speed very little.
const (
	weightNormal    = 1.0
	weightFast      = 0.8
	weightSkimSpeed = 0.3
)

// Engine accumulates engagement metrics for one unit session. One engine
// exists per active session; it is created when the unit opens and
// discarded (after its snapshot is persisted) when the unit closes.
type Engine struct {
	mu sync.Mutex

	snapshot models.MetricsSnapshot

	// currentRate is the last rate reported via rate_change events.
	currentRate float64

	// tickSeconds is the nominal duration credited per tick, matching
	// the caller's tick cadence.
	tickSeconds float64
}

// New creates an engine crediting one nominal second per tick.
func New() *Engine {
	return NewWithTickSeconds(1.0)
}

// NewWithTickSeconds creates an engine for callers ticking at a cadence
// other than 1 Hz; tickSeconds scales the per-tick accumulation.
func NewWithTickSeconds(tickSeconds float64) *Engine {
	if tickSeconds <= 0 {
		tickSeconds = 1.0
	}
	return &Engine{
		currentRate: 1.0,
		tickSeconds: tickSeconds,
	}
}

// ProcessEvent folds one behavioral event into the metrics state.
func (e *Engine) ProcessEvent(event *models.BehavioralEvent) {
	if event == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case event.Category == models.CategoryVideoPlayer && event.Name == models.EventSeek:
		e.analyzeSeek(event.Payload.SeekFrom, event.Payload.SeekTo)

	case event.Category == models.CategoryVideoPlayer && event.Name == models.EventRateChange:
		e.currentRate = 1.0
		if event.Payload.PlaybackRate != nil {
			e.currentRate = *event.Payload.PlaybackRate
		}
		if e.currentRate >= speedPenaltyRate {
			e.snapshot.PlaybackSpeedPenaltyCount++
		}

	case event.IsInteraction():
		e.snapshot.InteractionCount++
	}

	// Every event carrying a position refreshes the drop-off marker.
	if event.Payload.VideoCurrentTime != nil {
		position := *event.Payload.VideoCurrentTime
		e.snapshot.DropOffTime = &position
	}
}

// analyzeSeek counts rewinds beyond the interest threshold. A missing
// endpoint means the event was malformed; the calculation is skipped.
func (e *Engine) analyzeSeek(from, to *float64) {
	if from == nil || to == nil {
		return
	}
	if *to-*from < -seekBackThreshold {
		e.snapshot.SeekBackCount++
	}
}

// Tick accumulates one nominal time-unit of playback. No-op unless
// playing. The True Engagement Score grows by the tick duration weighted
// by the playback speed; the seek-back rate is then renormalized per
// minute of accumulated play time.
func (e *Engine) Tick(isPlaying bool, currentTime, playbackRate float64) {
	if !isPlaying {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	weight := weightNormal
	switch {
	case playbackRate >= speedPenaltyRate:
		weight = weightSkimSpeed
	case playbackRate == 1.5:
		weight = weightFast
	}

	e.snapshot.TrueEngagementScore += e.tickSeconds * weight
	e.snapshot.TotalPlayTime += e.tickSeconds
	e.snapshot.DropOffTime = &currentTime

	minutes := e.snapshot.TotalPlayTime / 60
	if minutes > 0 {
		e.snapshot.SeekBackRate = float64(e.snapshot.SeekBackCount) / minutes
	}
}

// Snapshot returns a copy of the current metrics state.
func (e *Engine) Snapshot() models.MetricsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.snapshot
	if e.snapshot.DropOffTime != nil {
		position := *e.snapshot.DropOffTime
		snap.DropOffTime = &position
	}
	return snap
}
