// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package tracking

import (
	"testing"

	"github.com/viewguard/viewguard/internal/models"
	"github.com/viewguard/viewguard/internal/playback"
)

type fakeSource struct {
	listener playback.Listener

	position    float64
	duration    float64
	hasDuration bool
	rate        float64
	playing     bool
}

func (f *fakeSource) SetListener(fn playback.Listener) { f.listener = fn }
func (f *fakeSource) CurrentTime() float64             { return f.position }
func (f *fakeSource) Duration() (float64, bool)        { return f.duration, f.hasDuration }
func (f *fakeSource) PlaybackRate() float64            { return f.rate }
func (f *fakeSource) Playing() bool                    { return f.playing }
func (f *fakeSource) Ready() bool                      { return true }
func (f *fakeSource) SeekTo(float64) error             { return nil }
func (f *fakeSource) MarkUnavailable()                 {}
func (f *fakeSource) Close()                           { f.listener = nil }

func (f *fakeSource) emit(ev playback.Event) {
	if f.listener != nil {
		f.listener(ev)
	}
}

type capturePublisher struct {
	topics []string
	events []*models.BehavioralEvent
	err    error
}

func (c *capturePublisher) Publish(topic string, event *models.BehavioralEvent) error {
	c.topics = append(c.topics, topic)
	c.events = append(c.events, event)
	return c.err
}

func newTestTracker(src *fakeSource, pub *capturePublisher) *Tracker {
	return New(Config{
		SessionID: "sess-1",
		UserID:    "emp-42",
		PageURL:   "/courses/golang/unit/0",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		Source:    src,
		Publisher: pub,
		Topic:     TopicForSession("sess-1"),
	})
}

func TestAttachEmitsPageView(t *testing.T) {
	src := &fakeSource{position: 0, duration: 600, hasDuration: true, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)

	tr.Attach()

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event after attach, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Category != models.CategorySystem || ev.Name != models.EventPageView {
		t.Fatalf("expected system/page_view, got %s/%s", ev.Category, ev.Name)
	}
	if ev.Payload.URL != "/courses/golang/unit/0" {
		t.Errorf("page_view url = %q", ev.Payload.URL)
	}
	if ev.SessionID != "sess-1" || ev.UserID != "emp-42" {
		t.Errorf("identity not stamped: %s/%s", ev.SessionID, ev.UserID)
	}
	if ev.Context.DeviceType != models.DeviceDesktop {
		t.Errorf("device = %q, want desktop", ev.Context.DeviceType)
	}
	if pub.topics[0] != TopicForSession("sess-1") {
		t.Errorf("topic = %q", pub.topics[0])
	}
}

func TestPlaybackEventMapping(t *testing.T) {
	src := &fakeSource{position: 42.5, duration: 600, hasDuration: true, rate: 1.5}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	tests := []struct {
		name     string
		in       playback.Event
		wantName string
	}{
		{"play", playback.Event{Kind: playback.KindPlay}, models.EventPlay},
		{"pause", playback.Event{Kind: playback.KindPause}, models.EventPause},
		{"ended maps to complete", playback.Event{Kind: playback.KindEnded}, models.EventComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub.events = nil
			src.emit(tt.in)
			if len(pub.events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(pub.events))
			}
			ev := pub.events[0]
			if ev.Category != models.CategoryVideoPlayer || ev.Name != tt.wantName {
				t.Fatalf("got %s/%s, want video_player/%s", ev.Category, ev.Name, tt.wantName)
			}
			if ev.Payload.VideoCurrentTime == nil || *ev.Payload.VideoCurrentTime != 42.5 {
				t.Errorf("current time snapshot missing or wrong")
			}
			if ev.Payload.VideoDuration == nil || *ev.Payload.VideoDuration != 600 {
				t.Errorf("duration snapshot missing or wrong")
			}
		})
	}
}

func TestSeekCarriesFromAndTo(t *testing.T) {
	src := &fakeSource{position: 130, duration: 600, hasDuration: true, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	src.emit(playback.Event{Kind: playback.KindSeeking, SeekFrom: 100})
	src.emit(playback.Event{Kind: playback.KindSeeked, SeekFrom: 100, SeekTo: 130, Position: 130})

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 seek event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Name != models.EventSeek {
		t.Fatalf("name = %q, want seek", ev.Name)
	}
	if ev.Payload.SeekFrom == nil || *ev.Payload.SeekFrom != 100 {
		t.Errorf("seek_from missing or wrong")
	}
	if ev.Payload.SeekTo == nil || *ev.Payload.SeekTo != 130 {
		t.Errorf("seek_to missing or wrong")
	}
}

func TestPauseDuringSeekSuppressed(t *testing.T) {
	src := &fakeSource{position: 100, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	src.emit(playback.Event{Kind: playback.KindSeeking, SeekFrom: 100})
	src.emit(playback.Event{Kind: playback.KindPause})
	src.emit(playback.Event{Kind: playback.KindSeeked, SeekFrom: 100, SeekTo: 60})

	for _, ev := range pub.events {
		if ev.Name == models.EventPause {
			t.Fatal("pause during a seek must not be recorded")
		}
	}
	// A pause after the seek settles is a real pause again.
	pub.events = nil
	src.emit(playback.Event{Kind: playback.KindPause})
	if len(pub.events) != 1 || pub.events[0].Name != models.EventPause {
		t.Fatal("pause after seek settled should be recorded")
	}
}

func TestRateChangeUsesEventRate(t *testing.T) {
	src := &fakeSource{position: 10, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	src.emit(playback.Event{Kind: playback.KindRateChange, Rate: 2.0})

	ev := pub.events[0]
	if ev.Name != models.EventRateChange {
		t.Fatalf("name = %q", ev.Name)
	}
	if ev.Payload.PlaybackRate == nil || *ev.Payload.PlaybackRate != 2.0 {
		t.Errorf("playback_rate should carry the new rate, got %v", ev.Payload.PlaybackRate)
	}
}

func TestUnknownDurationStaysAbsent(t *testing.T) {
	src := &fakeSource{position: 5, hasDuration: false, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	src.emit(playback.Event{Kind: playback.KindPlay})

	if pub.events[0].Payload.VideoDuration != nil {
		t.Error("unknown duration must stay absent, not zero")
	}
}

func TestTimeUpdateAndUnavailableNotTracked(t *testing.T) {
	src := &fakeSource{position: 5, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	src.emit(playback.Event{Kind: playback.KindTimeUpdate, Position: 6})
	src.emit(playback.Event{Kind: playback.KindUnavailable})

	if len(pub.events) != 0 {
		t.Fatalf("time_update/unavailable must not produce behavioral events, got %d", len(pub.events))
	}
}

func TestTrackInteraction(t *testing.T) {
	src := &fakeSource{position: 5, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	tr.TrackInteraction(models.InteractionDownloadAttachment, "slides.pdf", "attachment")

	ev := pub.events[0]
	if ev.Category != models.CategoryInteraction || ev.Name != models.InteractionDownloadAttachment {
		t.Fatalf("got %s/%s", ev.Category, ev.Name)
	}
	if ev.Payload.TargetID != "slides.pdf" || ev.Payload.TargetType != "attachment" {
		t.Errorf("target = %s/%s", ev.Payload.TargetID, ev.Payload.TargetType)
	}
}

func TestDetachStopsEmission(t *testing.T) {
	src := &fakeSource{position: 5, rate: 1.0}
	pub := &capturePublisher{}
	tr := newTestTracker(src, pub)
	tr.Attach()
	pub.events = nil

	tr.Detach()
	tr.Detach() // idempotent

	tr.TrackInteraction(models.InteractionClickRelatedLink, "x", "link")
	if len(pub.events) != 0 {
		t.Fatal("no event may be published after Detach")
	}
	if src.listener != nil {
		t.Fatal("listener must be cleared on Detach")
	}
}
