// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package tracking turns normalized playback transitions into typed
// behavioral events conforming to the LMS User Behavioral Event Schema,
// and publishes them onto the in-process event bus.
//
// One tracker exists per unit session. The fan-out point to the metrics
// engine is the session's bus topic, never a shared callback, so
// concurrent units cannot observe each other's events.
package tracking

import (
	"sync"

	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/models"
	"github.com/viewguard/viewguard/internal/playback"
)

// Publisher is the subset of the bus a tracker needs.
type Publisher interface {
	Publish(topic string, event *models.BehavioralEvent) error
}

// Config describes one tracker attachment.
type Config struct {
	SessionID string
	UserID    string
	PageURL   string
	UserAgent string

	Source playback.Source

	Publisher Publisher
	Topic     string
}

// Tracker observes one playback source and emits behavioral events with
// session, user, and page context plus a player-state snapshot taken at
// event time.
type Tracker struct {
	mu sync.Mutex

	cfg     Config
	context models.EventContext

	// seekInFlight suppresses the spurious pause some native players
	// fire between seeking and seeked; counting it would corrupt
	// play-time accounting.
	seekInFlight bool

	detached bool
}

// New creates a tracker. Call Attach to start observing.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg: cfg,
		context: models.EventContext{
			PageURL:    cfg.PageURL,
			UserAgent:  cfg.UserAgent,
			DeviceType: ClassifyDevice(cfg.UserAgent),
		},
	}
}

// Attach registers the tracker as the source's listener and immediately
// emits the session's page_view event.
func (t *Tracker) Attach() {
	t.cfg.Source.SetListener(t.handle)

	event := t.build(models.CategorySystem, models.EventPageView)
	event.Payload.URL = t.cfg.PageURL
	t.publish(event)
}

// Detach stops event emission and detaches from the source. Safe to
// call more than once; no event is published after Detach returns.
func (t *Tracker) Detach() {
	t.mu.Lock()
	t.detached = true
	t.mu.Unlock()
	t.cfg.Source.SetListener(nil)
}

// TrackInteraction records a manual interaction such as downloading an
// attachment or following a related link.
func (t *Tracker) TrackInteraction(action, targetID, targetType string) {
	event := t.build(models.CategoryInteraction, action)
	event.Payload.TargetID = targetID
	event.Payload.TargetType = targetType
	t.publish(event)
}

// handle maps one normalized playback event onto the behavioral schema.
func (t *Tracker) handle(pe playback.Event) {
	switch pe.Kind {
	case playback.KindPlay:
		t.publish(t.build(models.CategoryVideoPlayer, models.EventPlay))

	case playback.KindPause:
		t.mu.Lock()
		inFlight := t.seekInFlight
		t.mu.Unlock()
		if inFlight {
			return
		}
		t.publish(t.build(models.CategoryVideoPlayer, models.EventPause))

	case playback.KindSeeking:
		t.mu.Lock()
		t.seekInFlight = true
		t.mu.Unlock()

	case playback.KindSeeked:
		t.mu.Lock()
		t.seekInFlight = false
		t.mu.Unlock()

		event := t.build(models.CategoryVideoPlayer, models.EventSeek)
		event.Payload.SeekFrom = models.Float64Ptr(pe.SeekFrom)
		event.Payload.SeekTo = models.Float64Ptr(pe.SeekTo)
		t.publish(event)

	case playback.KindRateChange:
		event := t.build(models.CategoryVideoPlayer, models.EventRateChange)
		event.Payload.PlaybackRate = models.Float64Ptr(pe.Rate)
		t.publish(event)

	case playback.KindEnded:
		t.publish(t.build(models.CategoryVideoPlayer, models.EventComplete))
	}
	// KindTimeUpdate and KindUnavailable are handled by the controller
	// and the guard; they are not behavioral events.
}

// build constructs an event and snapshots the player state into its
// payload. An unknown duration stays absent rather than zero.
func (t *Tracker) build(category, name string) *models.BehavioralEvent {
	event := models.NewBehavioralEvent(category, name)
	event.SessionID = t.cfg.SessionID
	event.UserID = t.cfg.UserID
	event.Context = t.context

	if src := t.cfg.Source; src != nil {
		event.Payload.VideoCurrentTime = models.Float64Ptr(src.CurrentTime())
		if duration, ok := src.Duration(); ok {
			event.Payload.VideoDuration = models.Float64Ptr(duration)
		}
		event.Payload.PlaybackRate = models.Float64Ptr(src.PlaybackRate())
	}
	return event
}

func (t *Tracker) publish(event *models.BehavioralEvent) {
	t.mu.Lock()
	detached := t.detached
	t.mu.Unlock()
	if detached {
		return
	}

	if err := t.cfg.Publisher.Publish(t.cfg.Topic, event); err != nil {
		logging.Error().Err(err).
			Str("session_id", t.cfg.SessionID).
			Str("event_name", event.Name).
			Msg("publish behavioral event failed")
	}
}
