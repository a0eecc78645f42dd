// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package playback

import (
	"sync"
	"time"
)

// NativeMessage is the raw message a client relays for a native media
// element. The event names mirror the media element's own events.
type NativeMessage struct {
	Event        string  `json:"event"`
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	PlaybackRate float64 `json:"playbackRate"`
}

// Native media element event names accepted by HandleMessage.
const (
	NativePlay       = "play"
	NativePause      = "pause"
	NativeSeeking    = "seeking"
	NativeSeeked     = "seeked"
	NativeRateChange = "ratechange"
	NativeEnded      = "ended"
	NativeTimeUpdate = "timeupdate"
)

// NativeMediaAdapter wraps a native media element relayed over the wire.
// The element reports the full event vocabulary directly, so no seek
// inference is needed; messages map one-to-one onto normalized events.
type NativeMediaAdapter struct {
	mu sync.Mutex

	listener Listener
	sender   CommandSender

	position    float64
	duration    float64
	hasDuration bool
	rate        float64
	playing     bool
	ready       bool
	closed      bool
	unavailable bool

	// seekFrom holds the position before the in-flight seek.
	seeking  bool
	seekFrom float64

	clock func() time.Time
}

// NewNativeMediaAdapter creates an adapter delivering commands through
// the given sender.
func NewNativeMediaAdapter(sender CommandSender) *NativeMediaAdapter {
	return &NativeMediaAdapter{
		sender: sender,
		rate:   1.0,
		clock:  time.Now,
	}
}

// HandleMessage ingests one relayed media element message and emits the
// corresponding normalized event. Unknown event names update the state
// sample but emit nothing.
func (a *NativeMediaAdapter) HandleMessage(msg NativeMessage) {
	a.mu.Lock()
	if a.closed || a.unavailable {
		a.mu.Unlock()
		return
	}
	a.ready = true

	prev := a.position
	a.position = msg.CurrentTime
	if msg.Duration > 0 {
		a.duration = msg.Duration
		a.hasDuration = true
	}
	if msg.PlaybackRate > 0 {
		a.rate = msg.PlaybackRate
	}

	var event *Event
	now := a.clock()

	switch msg.Event {
	case NativePlay:
		a.playing = true
		event = &Event{Kind: KindPlay, At: now, Position: msg.CurrentTime}
	case NativePause:
		a.playing = false
		event = &Event{Kind: KindPause, At: now, Position: msg.CurrentTime}
	case NativeSeeking:
		if !a.seeking {
			a.seeking = true
			a.seekFrom = prev
		}
		event = &Event{Kind: KindSeeking, At: now, SeekFrom: a.seekFrom, Position: msg.CurrentTime}
	case NativeSeeked:
		from := a.seekFrom
		if !a.seeking {
			from = prev
		}
		a.seeking = false
		event = &Event{Kind: KindSeeked, At: now, SeekFrom: from, SeekTo: msg.CurrentTime, Position: msg.CurrentTime}
	case NativeRateChange:
		event = &Event{Kind: KindRateChange, At: now, Rate: a.rate, Position: msg.CurrentTime}
	case NativeEnded:
		a.playing = false
		event = &Event{Kind: KindEnded, At: now, Position: msg.CurrentTime}
	case NativeTimeUpdate:
		event = &Event{Kind: KindTimeUpdate, At: now, Position: msg.CurrentTime}
	}

	listener := a.listener
	a.mu.Unlock()

	if event != nil && listener != nil {
		listener(*event)
	}
}

// SetListener implements Source.
func (a *NativeMediaAdapter) SetListener(fn Listener) {
	a.mu.Lock()
	a.listener = fn
	a.mu.Unlock()
}

// CurrentTime implements Source.
func (a *NativeMediaAdapter) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Duration implements Source.
func (a *NativeMediaAdapter) Duration() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duration, a.hasDuration
}

// PlaybackRate implements Source.
func (a *NativeMediaAdapter) PlaybackRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}

// Playing implements Source.
func (a *NativeMediaAdapter) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Ready implements Source.
func (a *NativeMediaAdapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// SeekTo implements Source.
func (a *NativeMediaAdapter) SeekTo(position float64) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.unavailable {
		a.mu.Unlock()
		return ErrUnavailable
	}
	sender := a.sender
	a.position = position
	a.mu.Unlock()

	if sender == nil {
		return nil
	}
	return sender(Command{Action: CommandSeek, Position: position})
}

// MarkUnavailable implements Source.
func (a *NativeMediaAdapter) MarkUnavailable() {
	a.mu.Lock()
	if a.closed || a.unavailable || a.ready {
		a.mu.Unlock()
		return
	}
	a.unavailable = true
	listener := a.listener
	now := a.clock()
	a.mu.Unlock()

	if listener != nil {
		listener(Event{Kind: KindUnavailable, At: now})
	}
}

// Close implements Source.
func (a *NativeMediaAdapter) Close() {
	a.mu.Lock()
	a.closed = true
	a.listener = nil
	a.sender = nil
	a.mu.Unlock()
}
