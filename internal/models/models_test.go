// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewBehavioralEvent(t *testing.T) {
	event := NewBehavioralEvent(CategoryVideoPlayer, EventPlay)

	if event.EventID == "" {
		t.Error("Expected EventID to be set")
	}
	if event.Category != CategoryVideoPlayer {
		t.Errorf("Expected Category=%s, got %s", CategoryVideoPlayer, event.Category)
	}
	if event.Name != EventPlay {
		t.Errorf("Expected Name=%s, got %s", EventPlay, event.Name)
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected Timestamp to be set")
	}
}

func TestBehavioralEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   *BehavioralEvent
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid event",
			event:   NewBehavioralEvent(CategorySystem, EventPageView),
			wantErr: false,
		},
		{
			name: "missing event_id",
			event: &BehavioralEvent{
				Timestamp: time.Now(),
				Category:  CategoryVideoPlayer,
				Name:      EventPlay,
			},
			wantErr: true,
			errMsg:  "event_id: required",
		},
		{
			name: "missing category",
			event: &BehavioralEvent{
				EventID:   "test-id",
				Timestamp: time.Now(),
				Name:      EventPlay,
			},
			wantErr: true,
			errMsg:  "event_category: required",
		},
		{
			name: "missing name",
			event: &BehavioralEvent{
				EventID:   "test-id",
				Timestamp: time.Now(),
				Category:  CategoryVideoPlayer,
			},
			wantErr: true,
			errMsg:  "event_name: required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// The snake_case event schema and camelCase progress fields are consumed
// by export tooling; the serialized names are a fixed contract.
func TestEventWireFieldNames(t *testing.T) {
	event := NewBehavioralEvent(CategoryVideoPlayer, EventSeek)
	event.SessionID = "s-1"
	event.UserID = "u-1"
	event.Context = EventContext{PageURL: "https://lms.example/course/1", UserAgent: "ua", DeviceType: DeviceDesktop}
	event.Payload = EventPayload{
		VideoCurrentTime: Float64Ptr(92),
		VideoDuration:    Float64Ptr(600),
		PlaybackRate:     Float64Ptr(1),
		SeekFrom:         Float64Ptr(100),
		SeekTo:           Float64Ptr(92),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for _, field := range []string{
		`"event_id"`, `"timestamp"`, `"session_id"`, `"user_id"`,
		`"event_category"`, `"event_name"`,
		`"page_url"`, `"user_agent"`, `"device_type"`,
		`"video_current_time"`, `"video_duration"`, `"playback_rate"`,
		`"seek_from"`, `"seek_to"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("serialized event missing field %s: %s", field, data)
		}
	}
}

func TestProgressWireFieldNames(t *testing.T) {
	p := UnitProgress{
		UnitIndex:         1,
		UnitTitle:         "Part1",
		Type:              UnitTypeVideo,
		LastPosition:      42,
		Duration:          600,
		ViewCount:         2,
		BehavioralMetrics: &MetricsSnapshot{SeekBackCount: 1, TotalPlayTime: 60},
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for _, field := range []string{
		`"unitIndex"`, `"unitTitle"`, `"type"`, `"lastPosition"`, `"duration"`,
		`"completed"`, `"quizCompleted"`, `"lastAccessTime"`, `"viewCount"`,
		`"behavioralMetrics"`,
		`"seekBackCount"`, `"seekBackRate"`, `"trueEngagementScore"`,
		`"playbackSpeedPenaltyCount"`, `"dropOffTime"`, `"interactionCount"`,
		`"totalPlayTime"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("serialized progress missing field %s: %s", field, data)
		}
	}
}

func TestIsInteraction(t *testing.T) {
	tests := []struct {
		category string
		name     string
		want     bool
	}{
		{CategoryInteraction, InteractionDownloadAttachment, true},
		{CategoryInteraction, InteractionClickRelatedLink, true},
		{CategoryInteraction, "hover", false},
		{CategoryVideoPlayer, EventPlay, false},
		{CategorySystem, EventPageView, false},
	}
	for _, tt := range tests {
		e := NewBehavioralEvent(tt.category, tt.name)
		if got := e.IsInteraction(); got != tt.want {
			t.Errorf("IsInteraction(%s/%s) = %v, want %v", tt.category, tt.name, got, tt.want)
		}
	}
}

func TestCourseAvailability(t *testing.T) {
	course := &Course{
		Title:     "Security Basics",
		StartDate: "2023-01-01",
		EndDate:   "2030-12-31",
	}

	inWindow := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	if !course.AvailableAt(inWindow) {
		t.Error("expected course available inside window")
	}

	// End date is inclusive through 23:59:59 of that day.
	lastMoment := time.Date(2030, 12, 31, 23, 59, 59, 0, time.UTC)
	if !course.AvailableAt(lastMoment) {
		t.Error("expected course available through end of end date")
	}

	after := time.Date(2031, 1, 1, 0, 0, 1, 0, time.UTC)
	if course.AvailableAt(after) {
		t.Error("expected course unavailable after end date")
	}

	before := time.Date(2022, 12, 31, 12, 0, 0, 0, time.UTC)
	if course.AvailableAt(before) {
		t.Error("expected course unavailable before start date")
	}

	open := &Course{Title: "No Window"}
	if !open.AvailableAt(after) {
		t.Error("course without window should always be available")
	}
}

func TestCourseViewableBy(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	course := &Course{
		StartDate:      "2023-01-01",
		EndDate:        "2030-12-31",
		AllowedUserIDs: []string{"A1234", "B9999"},
	}

	if !course.ViewableBy("A1234", false, now) {
		t.Error("allow-listed employee should view")
	}
	if course.ViewableBy("C0000", false, now) {
		t.Error("unlisted employee should not view")
	}
	if !course.ViewableBy("", true, now) {
		t.Error("admin should bypass allow-list")
	}
	if course.ViewableBy("", false, now) {
		t.Error("anonymous user should not view restricted course")
	}

	public := &Course{StartDate: "2023-01-01", EndDate: "2030-12-31"}
	if !public.ViewableBy("", false, now) {
		t.Error("course without allow-list is open to everyone")
	}
}

func TestDocumentKey(t *testing.T) {
	if got := DocumentKey("u1", "c1"); got != "u1_c1" {
		t.Errorf("DocumentKey = %q, want u1_c1", got)
	}
}
