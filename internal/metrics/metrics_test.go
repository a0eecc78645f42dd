// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/courses", "200"))
	RecordAPIRequest("GET", "/api/v1/courses", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/courses", "200"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestRecordSaveOutcomes(t *testing.T) {
	okBefore := testutil.ToFloat64(SavesTotal.WithLabelValues("autosave", "ok"))
	errBefore := testutil.ToFloat64(SavesTotal.WithLabelValues("autosave", "error"))

	RecordSave("autosave", nil, time.Millisecond)
	RecordSave("autosave", errors.New("disk full"), time.Millisecond)

	if got := testutil.ToFloat64(SavesTotal.WithLabelValues("autosave", "ok")); got != okBefore+1 {
		t.Errorf("ok = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(SavesTotal.WithLabelValues("autosave", "error")); got != errBefore+1 {
		t.Errorf("error = %v, want %v", got, errBefore+1)
	}
}

func TestRecordEvent(t *testing.T) {
	before := testutil.ToFloat64(EventsProcessed.WithLabelValues("video_player", "play"))
	RecordEvent("video_player", "play")
	if got := testutil.ToFloat64(EventsProcessed.WithLabelValues("video_player", "play")); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}
