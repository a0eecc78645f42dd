// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package playback

import (
	"sync"
	"time"
)

// EmbeddedMessage is the raw message a client relays for an IFrame-style
// embedded player: coarse state transitions plus periodic position
// samples from polling the player API.
type EmbeddedMessage struct {
	// State is one of the embedded player states, or EmbeddedSample for
	// a pure position sample.
	State        string  `json:"state"`
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	PlaybackRate float64 `json:"playbackRate"`
}

// Embedded player states. The player reports no seeking signal; seeks
// are inferred from position samples.
const (
	EmbeddedUnstarted = "UNSTARTED"
	EmbeddedPlaying   = "PLAYING"
	EmbeddedPaused    = "PAUSED"
	EmbeddedBuffering = "BUFFERING"
	EmbeddedEnded     = "ENDED"
	EmbeddedCued      = "CUED"
	EmbeddedSample    = "SAMPLE"
)

// defaultSeekTolerance is how far a sampled position may drift from the
// extrapolated one before the jump is treated as a seek. Covers network
// and codec jitter on sub-second sampling.
const defaultSeekTolerance = 2.0

// EmbeddedPlayerAdapter wraps a third-party IFrame player. The player
// only reports PLAYING/PAUSED/ENDED transitions, so seeks are detected
// by comparing each position sample against the position extrapolated
// from the previous sample; any jump beyond the tolerance becomes a
// synthetic seeked event.
type EmbeddedPlayerAdapter struct {
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

	// lastSampleAt anchors position extrapolation between samples.
	lastSampleAt time.Time

	// seekTolerance is the inference threshold in seconds.
	seekTolerance float64

	// suppressNextJump skips inference for one sample after a forced
	// seek, so the guard's own correction is not re-reported as a seek.
	suppressNextJump bool

	clock func() time.Time
}

// NewEmbeddedPlayerAdapter creates an adapter delivering commands through
// the given sender.
func NewEmbeddedPlayerAdapter(sender CommandSender) *EmbeddedPlayerAdapter {
	return &EmbeddedPlayerAdapter{
		sender:        sender,
		rate:          1.0,
		seekTolerance: defaultSeekTolerance,
		clock:         time.Now,
	}
}

// HandleMessage ingests one relayed embedded-player message.
//
// State transitions map to play/pause/ended. Samples update the state
// and may synthesize a seeked event when the reported position jumps
// beyond what elapsed wall time explains.
func (a *EmbeddedPlayerAdapter) HandleMessage(msg EmbeddedMessage) {
	a.mu.Lock()
	if a.closed || a.unavailable {
		a.mu.Unlock()
		return
	}
	a.ready = true

	now := a.clock()
	var events []Event

	if msg.Duration > 0 {
		a.duration = msg.Duration
		a.hasDuration = true
	}
	if msg.PlaybackRate > 0 && msg.PlaybackRate != a.rate {
		a.rate = msg.PlaybackRate
		events = append(events, Event{Kind: KindRateChange, At: now, Rate: msg.PlaybackRate, Position: msg.CurrentTime})
	}

	switch msg.State {
	case EmbeddedPlaying:
		a.position = msg.CurrentTime
		a.lastSampleAt = now
		if !a.playing {
			a.playing = true
			events = append(events, Event{Kind: KindPlay, At: now, Position: msg.CurrentTime})
		}
	case EmbeddedPaused:
		a.position = msg.CurrentTime
		a.lastSampleAt = now
		if a.playing {
			a.playing = false
			events = append(events, Event{Kind: KindPause, At: now, Position: msg.CurrentTime})
		}
	case EmbeddedEnded:
		a.position = msg.CurrentTime
		a.lastSampleAt = now
		a.playing = false
		events = append(events, Event{Kind: KindEnded, At: now, Position: msg.CurrentTime})
	case EmbeddedSample:
		if event, ok := a.inferSeek(msg.CurrentTime, now); ok {
			events = append(events, event)
		}
		a.position = msg.CurrentTime
		a.lastSampleAt = now
		events = append(events, Event{Kind: KindTimeUpdate, At: now, Position: msg.CurrentTime})
	case EmbeddedBuffering, EmbeddedUnstarted, EmbeddedCued:
		// Transient states carry a position but no normalized transition.
		a.position = msg.CurrentTime
		a.lastSampleAt = now
	}

	listener := a.listener
	a.mu.Unlock()

	if listener != nil {
		for _, event := range events {
			listener(event)
		}
	}
}

// inferSeek compares the sampled position against the extrapolated one.
// Must be called with the lock held.
func (a *EmbeddedPlayerAdapter) inferSeek(sampled float64, now time.Time) (Event, bool) {
	if a.suppressNextJump {
		a.suppressNextJump = false
		return Event{}, false
	}
	if a.lastSampleAt.IsZero() {
		return Event{}, false
	}

	expected := a.position
	if a.playing {
		expected += now.Sub(a.lastSampleAt).Seconds() * a.rate
	}

	delta := sampled - expected
	if delta > a.seekTolerance || delta < -a.seekTolerance {
		return Event{
			Kind:     KindSeeked,
			At:       now,
			SeekFrom: expected,
			SeekTo:   sampled,
			Position: sampled,
		}, true
	}
	return Event{}, false
}

// SetListener implements Source.
func (a *EmbeddedPlayerAdapter) SetListener(fn Listener) {
	a.mu.Lock()
	a.listener = fn
	a.mu.Unlock()
}

// CurrentTime implements Source.
func (a *EmbeddedPlayerAdapter) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Duration implements Source.
func (a *EmbeddedPlayerAdapter) Duration() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duration, a.hasDuration
}

// PlaybackRate implements Source.
func (a *EmbeddedPlayerAdapter) PlaybackRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}

// Playing implements Source.
func (a *EmbeddedPlayerAdapter) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Ready implements Source.
func (a *EmbeddedPlayerAdapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// SeekTo implements Source. The next sample after a forced seek is
// exempt from inference so the correction is not itself reported as a
// learner seek.
func (a *EmbeddedPlayerAdapter) SeekTo(position float64) error {
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
	a.lastSampleAt = a.clock()
	a.suppressNextJump = true
	a.mu.Unlock()

	if sender == nil {
		return nil
	}
	return sender(Command{Action: CommandSeek, Position: position})
}

// MarkUnavailable implements Source.
func (a *EmbeddedPlayerAdapter) MarkUnavailable() {
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
func (a *EmbeddedPlayerAdapter) Close() {
	a.mu.Lock()
	a.closed = true
	a.listener = nil
	a.sender = nil
	a.mu.Unlock()
}
