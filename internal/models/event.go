// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event categories of the behavioral event schema.
const (
	CategoryVideoPlayer = "video_player_event"
	CategoryInteraction = "interaction_event"
	CategorySystem      = "system_event"
)

// Player event names.
const (
	EventPlay       = "play"
	EventPause      = "pause"
	EventSeek       = "seek"
	EventRateChange = "rate_change"
	EventComplete   = "complete"
)

// System event names.
const (
	EventPageView = "page_view"
)

// Interaction event names. These are the interaction signals the metrics
// engine counts toward engagement.
const (
	InteractionDownloadAttachment = "download_attachment"
	InteractionClickRelatedLink   = "click_related_link"
)

// Device classes reported in the event context.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// EventContext carries the page/client environment a behavioral event
// was observed in.
type EventContext struct {
	PageURL    string `json:"page_url"`
	UserAgent  string `json:"user_agent"`
	DeviceType string `json:"device_type"`
}

// EventPayload holds event-specific data. Player state is snapshotted
// into every event while a playback source is attached; pointer fields
// distinguish "unknown" from zero (a player that has not reported a
// duration yet must not look like a zero-length video).
type EventPayload struct {
	VideoCurrentTime *float64 `json:"video_current_time,omitempty"`
	VideoDuration    *float64 `json:"video_duration,omitempty"`
	PlaybackRate     *float64 `json:"playback_rate,omitempty"`

	// Seek events only.
	SeekFrom *float64 `json:"seek_from,omitempty"`
	SeekTo   *float64 `json:"seek_to,omitempty"`

	// Interaction events only.
	TargetID   string `json:"target_id,omitempty"`
	TargetType string `json:"target_type,omitempty"`

	// Page-view events only.
	URL string `json:"url,omitempty"`
}

// BehavioralEvent is one immutable record of observed learner behavior,
// following the LMS User Behavioral Event Schema. Events are created by
// the tracker, never mutated, and consumed once by the metrics engine.
type BehavioralEvent struct {
	EventID   string       `json:"event_id"`
	Timestamp time.Time    `json:"timestamp"`
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	Category  string       `json:"event_category"`
	Name      string       `json:"event_name"`
	Context   EventContext `json:"context"`
	Payload   EventPayload `json:"payload"`
}

// NewBehavioralEvent creates an event with a fresh ID and UTC timestamp.
func NewBehavioralEvent(category, name string) *BehavioralEvent {
	return &BehavioralEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Category:  category,
		Name:      name,
	}
}

// Validate checks the fields every event must carry.
func (e *BehavioralEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("behavioral event: event_id: required")
	}
	if e.Category == "" {
		return fmt.Errorf("behavioral event: event_category: required")
	}
	if e.Name == "" {
		return fmt.Errorf("behavioral event: event_name: required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("behavioral event: timestamp: required")
	}
	return nil
}

// IsInteraction reports whether the event is a countable interaction
// signal (attachment download or related-link click).
func (e *BehavioralEvent) IsInteraction() bool {
	if e.Category != CategoryInteraction {
		return false
	}
	return e.Name == InteractionDownloadAttachment || e.Name == InteractionClickRelatedLink
}

// Float64Ptr is a convenience helper for building event payloads.
func Float64Ptr(v float64) *float64 {
	return &v
}
