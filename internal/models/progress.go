// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package models

import "time"

// Unit content types.
const (
	UnitTypeVideo = "video"
	UnitTypeQuiz  = "quiz"
)

// Course progress statuses derived from the completion rate.
const (
	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// MetricsSnapshot is the accumulated behavioral-engagement state for one
// unit session. Owned exclusively by a single metrics engine instance
// while the session is live; persisted into UnitProgress on save.
type MetricsSnapshot struct {
	SeekBackCount int `json:"seekBackCount"`

	// SeekBackRate is seek-backs per minute of accumulated play time.
	SeekBackRate float64 `json:"seekBackRate"`

	// TrueEngagementScore is the time-and-speed-weighted accumulation of
	// playback seconds. Non-decreasing while playing.
	TrueEngagementScore float64 `json:"trueEngagementScore"`

	PlaybackSpeedPenaltyCount int `json:"playbackSpeedPenaltyCount"`

	// DropOffTime is the last known playback position, in seconds.
	// Nil until the first event carrying a position arrives.
	DropOffTime *float64 `json:"dropOffTime"`

	InteractionCount int `json:"interactionCount"`

	// TotalPlayTime is seconds of playback accumulated via the tick loop.
	TotalPlayTime float64 `json:"totalPlayTime"`
}

// UnitProgress is the persisted progress record for one
// (user, course, unit index).
//
// Invariants:
//   - 0 <= LastPosition <= Duration when Duration is known.
//   - Completed is derived and never reverts to false once true, except
//     by explicit re-initialization of the whole document.
type UnitProgress struct {
	UnitIndex    int     `json:"unitIndex"`
	UnitTitle    string  `json:"unitTitle"`
	Type         string  `json:"type"`
	LastPosition float64 `json:"lastPosition"`
	Duration     float64 `json:"duration"`

	Completed     bool `json:"completed"`
	QuizCompleted bool `json:"quizCompleted"`

	LastAccessTime time.Time `json:"lastAccessTime"`

	// ViewCount increments once per unit activation.
	ViewCount int `json:"viewCount"`

	BehavioralMetrics *MetricsSnapshot `json:"behavioralMetrics,omitempty"`
}

// NewUnitProgress returns a fresh not-started record for a unit.
func NewUnitProgress(index int, title, unitType string) UnitProgress {
	return UnitProgress{
		UnitIndex: index,
		UnitTitle: title,
		Type:      unitType,
	}
}

// IsComplete reports whether the unit counts as finished for aggregation:
// videos by the watch threshold, quizzes by the confirmation gesture.
func (p *UnitProgress) IsComplete() bool {
	return p.Completed || p.QuizCompleted
}

// CourseProgress is the course-level aggregate over a unit progress
// collection. It is recomputed on every save and never persisted on its
// own beyond the unit array.
type CourseProgress struct {
	CompletionRate int    `json:"completionRate"`
	Status         string `json:"status"`
	CompletedUnits int    `json:"completedUnits"`
	TotalUnits     int    `json:"totalUnits"`
}

// ProgressDocument is the unit of persistence in the progress store,
// keyed by the stable userId_courseId identity.
type ProgressDocument struct {
	UserID     string         `json:"userId"`
	CourseID   string         `json:"courseId"`
	CourseName string         `json:"courseName"`
	Units      []UnitProgress `json:"units"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	// Extra preserves fields written by other tooling into the same
	// document. Saves must merge, not clobber, unrelated state.
	Extra map[string]any `json:"-"`
}

// DocumentKey returns the stable identity the progress store keys on.
func DocumentKey(userID, courseID string) string {
	return userID + "_" + courseID
}
