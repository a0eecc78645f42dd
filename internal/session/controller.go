// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package session owns the per-unit learning session: the lifecycle
// state machine, the timers, and the wiring between playback source,
// behavioral tracker, metrics engine, anti-skip guard, and progress
// store.
//
// Every timer and every piece of mutable session state lives on the
// controller instance. Activating unit B after unit A must leave no
// ticker, listener, or subscription from A alive; Teardown is
// synchronous and the activation path for the next unit calls it first.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/viewguard/viewguard/internal/course"
	"github.com/viewguard/viewguard/internal/engine"
	"github.com/viewguard/viewguard/internal/guard"
	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/metrics"
	"github.com/viewguard/viewguard/internal/models"
	"github.com/viewguard/viewguard/internal/playback"
	"github.com/viewguard/viewguard/internal/store"
	"github.com/viewguard/viewguard/internal/tracking"
)

// State is a lifecycle phase of a unit session.
type State string

// Session lifecycle states. Seeking is transient: entered while a seek
// is in flight, left on the settled seek event.
const (
	StateIdle       State = "idle"
	StateActivating State = "activating"
	StateReady      State = "ready"
	StatePlaying    State = "playing"
	StatePaused     State = "paused"
	StateSeeking    State = "seeking"
	StateCompleted  State = "completed"
	StateDegraded   State = "degraded"
	StateClosed     State = "closed"
)

const (
	// completionThreshold marks a video complete once the observed
	// position reaches this fraction of its duration.
	completionThreshold = 0.9

	defaultAutosaveInterval = 10 * time.Second
	defaultMetricsInterval  = time.Second
)

// ErrNotActive indicates an operation that requires a live session.
var ErrNotActive = errors.New("session: not active")

// ErrWrongUnitType indicates a quiz operation against a video unit or
// vice versa.
var ErrWrongUnitType = errors.New("session: operation does not match unit type")

// Config assembles one unit session.
type Config struct {
	UserID string
	Course *models.Course

	UnitIndex int

	Source playback.Source
	Store  store.ProgressStore
	Bus    *tracking.Bus

	// PageURL and UserAgent describe the client context stamped onto
	// behavioral events.
	PageURL   string
	UserAgent string

	// GuardBypass disables forced-seek corrections for privileged
	// reviewers. The watermark is still tracked.
	GuardBypass bool

	AutosaveInterval time.Duration
	MetricsInterval  time.Duration
}

// Controller drives one unit session from activation to teardown.
type Controller struct {
	cfg       Config
	sessionID string

	mu    sync.Mutex
	state State

	doc  *models.ProgressDocument
	unit *models.UnitProgress

	eng     *engine.Engine
	grd     *guard.Guard
	tracker *tracking.Tracker

	// saveMu serializes saves so the final save in Teardown cannot
	// interleave with a late autosave tick.
	saveMu sync.Mutex

	degraded bool

	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewController builds a controller in the Idle state. Call Activate to
// start the session.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Course == nil {
		return nil, errors.New("session: course is required")
	}
	if cfg.UnitIndex < 0 || cfg.UnitIndex >= len(cfg.Course.Units) {
		return nil, fmt.Errorf("session: unit index %d out of range for course %s", cfg.UnitIndex, cfg.Course.ID)
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = defaultAutosaveInterval
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = defaultMetricsInterval
	}

	return &Controller{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		state:     StateIdle,
		eng:       engine.New(),
		stop:      make(chan struct{}),
	}, nil
}

// SessionID returns the unique identifier stamped onto this session's
// behavioral events.
func (c *Controller) SessionID() string { return c.sessionID }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate loads persisted progress, attaches the tracker, restores the
// saved position, and starts the session's timers.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("session: activate from state %s", c.state)
	}
	c.state = StateActivating
	c.mu.Unlock()

	doc, err := c.loadDocument(ctx)
	if err != nil {
		c.setState(StateIdle)
		return err
	}
	c.doc = doc
	c.unit = &doc.Units[c.cfg.UnitIndex]

	c.unit.ViewCount++
	c.unit.LastAccessTime = time.Now()

	seed := c.unit.LastPosition
	c.grd = guard.New(seed, guard.DefaultBufferSeconds, c.cfg.GuardBypass)

	topic := tracking.TopicForSession(c.sessionID)
	runCtx, cancel := context.WithCancel(context.Background())
	events, err := c.cfg.Bus.Subscribe(runCtx, topic)
	if err != nil {
		cancel()
		c.setState(StateIdle)
		return fmt.Errorf("subscribe session topic: %w", err)
	}
	c.cancel = cancel

	c.tracker = tracking.New(tracking.Config{
		SessionID: c.sessionID,
		UserID:    c.cfg.UserID,
		PageURL:   c.cfg.PageURL,
		UserAgent: c.cfg.UserAgent,
		Source:    c.cfg.Source,
		Publisher: c.cfg.Bus,
		Topic:     topic,
	})
	c.tracker.Attach()

	// Resume where the learner left off. A fresh unit stays at zero.
	if seed > 0 {
		if err := c.cfg.Source.SeekTo(seed); err != nil && !errors.Is(err, playback.ErrClosed) {
			logging.Warn().Err(err).
				Str("session_id", c.sessionID).
				Float64("position", seed).
				Msg("resume seek failed")
		}
	}

	c.wg.Add(1)
	go c.run(events)

	c.setState(StateReady)
	metrics.ActiveSessions.Inc()
	metrics.SessionActivations.WithLabelValues(c.unit.Type).Inc()
	if err := c.save(ctx, "activate"); err != nil {
		logging.Warn().Err(err).Str("session_id", c.sessionID).Msg("activation save failed")
	}

	logging.Info().
		Str("session_id", c.sessionID).
		Str("user_id", c.cfg.UserID).
		Str("course_id", c.cfg.Course.ID).
		Int("unit_index", c.cfg.UnitIndex).
		Int("view_count", c.unit.ViewCount).
		Msg("unit session activated")
	return nil
}

// loadDocument fetches the stored document or starts a fresh one, then
// backfills unit slots added to the course since the last save.
func (c *Controller) loadDocument(ctx context.Context) (*models.ProgressDocument, error) {
	doc, err := c.cfg.Store.Load(ctx, c.cfg.UserID, c.cfg.Course.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		doc = &models.ProgressDocument{
			UserID:     c.cfg.UserID,
			CourseID:   c.cfg.Course.ID,
			CourseName: c.cfg.Course.Title,
		}
	case err != nil:
		return nil, fmt.Errorf("load progress: %w", err)
	}

	units, grown := course.Backfill(doc.Units, c.cfg.Course.Units, time.Now())
	doc.Units = units
	if grown {
		logging.Info().
			Str("user_id", c.cfg.UserID).
			Str("course_id", c.cfg.Course.ID).
			Int("units", len(units)).
			Msg("progress backfilled for new course units")
	}
	if c.cfg.UnitIndex >= len(doc.Units) {
		return nil, fmt.Errorf("session: unit index %d beyond stored units %d", c.cfg.UnitIndex, len(doc.Units))
	}
	return doc, nil
}

// run is the session's event loop. It owns the autosave and metrics
// tickers; both die with the session.
func (c *Controller) run(events <-chan *message.Message) {
	defer c.wg.Done()

	autosave := time.NewTicker(c.cfg.AutosaveInterval)
	defer autosave.Stop()
	metrics := time.NewTicker(c.cfg.MetricsInterval)
	defer metrics.Stop()

	for {
		select {
		case <-c.stop:
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			event, err := tracking.DecodeEvent(msg)
			msg.Ack()
			if err != nil {
				logging.Error().Err(err).Str("session_id", c.sessionID).Msg("undecodable behavioral event")
				continue
			}
			c.handleEvent(event)
		case <-metrics.C:
			c.tick()
		case <-autosave.C:
			c.autosaveTick()
		}
	}
}

// handleEvent applies one behavioral event to the metrics engine and
// the lifecycle state machine.
func (c *Controller) handleEvent(event *models.BehavioralEvent) {
	c.eng.ProcessEvent(event)

	switch event.Name {
	case models.EventPlay:
		c.transitionPlayback(StatePlaying)

	case models.EventPause:
		c.transitionPlayback(StatePaused)
		c.saveBackground("pause")

	case models.EventSeek:
		if event.Payload.SeekTo == nil {
			return
		}
		target := *event.Payload.SeekTo
		decision := c.grd.Observe(target)
		if c.grd.Bypassed() && decision.Action == guard.ActionAdvance {
			metrics.GuardBypassedSeeks.Inc()
		}
		if decision.Action == guard.ActionClamp {
			metrics.GuardCorrections.Inc()
			logging.GuardCorrection().
				Str("session_id", c.sessionID).
				Str("user_id", c.cfg.UserID).
				Float64("attempted", target).
				Float64("corrected_to", decision.Target).
				Msg("seek past watched boundary corrected")
			if err := c.cfg.Source.SeekTo(decision.Target); err != nil && !errors.Is(err, playback.ErrClosed) {
				logging.Error().Err(err).Str("session_id", c.sessionID).Msg("guard correction seek failed")
			}
			return
		}
		c.mu.Lock()
		if target <= c.unit.Duration || c.unit.Duration == 0 {
			c.unit.LastPosition = target
		}
		c.mu.Unlock()
		if c.cfg.Source.Playing() {
			c.transitionPlayback(StatePlaying)
		} else {
			c.transitionPlayback(StatePaused)
		}
		c.saveBackground("seek")

	case models.EventComplete:
		c.markVideoComplete()
		c.transitionPlayback(StateCompleted)
		c.saveBackground("complete")
	}
}

// transitionPlayback moves between the playing-phase states without
// disturbing terminal or degraded states.
func (c *Controller) transitionPlayback(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed, StateDegraded:
		return
	case StateCompleted:
		// Completion is terminal for the unit; replays of a finished
		// unit stay in Completed.
		return
	}
	c.state = next
}

// tick advances the metrics engine, the guard watermark, and the
// position bookkeeping once per metrics interval.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.state == StateClosed || c.degraded {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	src := c.cfg.Source
	playing := src.Playing()
	position := src.CurrentTime()
	rate := src.PlaybackRate()

	c.eng.Tick(playing, position, rate)

	if playing {
		c.grd.Observe(position)
		c.mu.Lock()
		if position > c.unit.LastPosition {
			c.unit.LastPosition = position
		}
		if duration, ok := src.Duration(); ok && duration > 0 {
			c.unit.Duration = duration
		}
		c.mu.Unlock()
		c.checkCompletion()
	}
}

// checkCompletion flips the video-complete flag once the position
// crosses the threshold. The flag never reverts.
func (c *Controller) checkCompletion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unit.Completed || c.unit.Type != models.UnitTypeVideo {
		return
	}
	if c.unit.Duration <= 0 {
		return
	}
	if c.unit.LastPosition >= completionThreshold*c.unit.Duration {
		c.unit.Completed = true
		metrics.UnitsCompleted.WithLabelValues(models.UnitTypeVideo).Inc()
		logging.Info().
			Str("session_id", c.sessionID).
			Str("user_id", c.cfg.UserID).
			Int("unit_index", c.cfg.UnitIndex).
			Msg("video unit completed")
	}
}

// markVideoComplete handles the player's own ended signal, which counts
// as completion regardless of threshold arithmetic.
func (c *Controller) markVideoComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unit.Type == models.UnitTypeVideo && !c.unit.Completed {
		c.unit.Completed = true
		metrics.UnitsCompleted.WithLabelValues(models.UnitTypeVideo).Inc()
	}
}

// VerifyQuiz checks a learner-entered verification code against the
// unit's expected code, case-insensitively. A match completes the quiz
// and persists immediately.
func (c *Controller) VerifyQuiz(ctx context.Context, code string) (bool, error) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateIdle {
		c.mu.Unlock()
		return false, ErrNotActive
	}
	if c.unit.Type != models.UnitTypeQuiz {
		c.mu.Unlock()
		return false, ErrWrongUnitType
	}
	expected := c.cfg.Course.Units[c.cfg.UnitIndex].VerificationCode
	match := expected != "" && strings.EqualFold(strings.TrimSpace(code), expected)
	if match {
		c.unit.QuizCompleted = true
	}
	c.mu.Unlock()

	if !match {
		return false, nil
	}
	metrics.UnitsCompleted.WithLabelValues(models.UnitTypeQuiz).Inc()
	if err := c.save(ctx, "quiz"); err != nil {
		return true, err
	}
	return true, nil
}

// TrackInteraction forwards a manual interaction into the session's
// event stream.
func (c *Controller) TrackInteraction(action, targetID, targetType string) error {
	c.mu.Lock()
	closed := c.state == StateClosed || c.state == StateIdle
	c.mu.Unlock()
	if closed {
		return ErrNotActive
	}
	c.tracker.TrackInteraction(action, targetID, targetType)
	return nil
}

// NoteSeeking marks the transient in-flight seek phase. The transport
// calls it when the player starts a seek; the settled seek event moves
// the state back to playing or paused.
func (c *Controller) NoteSeeking() {
	c.transitionPlayback(StateSeeking)
}

// HandleUnavailable degrades the session after player initialization
// failure: autosave stops so a dead player cannot overwrite good
// progress with zeros, and the learner keeps whatever was last saved.
func (c *Controller) HandleUnavailable() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.degraded = true
	c.state = StateDegraded
	c.mu.Unlock()

	metrics.SessionsDegraded.Inc()
	c.cfg.Source.MarkUnavailable()
	logging.Error().
		Str("session_id", c.sessionID).
		Str("user_id", c.cfg.UserID).
		Int("unit_index", c.cfg.UnitIndex).
		Msg("player unavailable, session degraded")
}

// autosaveTick persists progress on the periodic timer. Degraded
// sessions skip it.
func (c *Controller) autosaveTick() {
	c.mu.Lock()
	skip := c.degraded || c.state == StateClosed
	c.mu.Unlock()
	if skip {
		return
	}
	c.saveBackground("autosave")
}

// saveBackground persists without blocking the event loop.
func (c *Controller) saveBackground(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.save(ctx, reason); err != nil {
		logging.Error().Err(err).
			Str("session_id", c.sessionID).
			Str("reason", reason).
			Msg("progress save failed")
	}
}

// save snapshots the player position and the metrics engine into the
// unit record, re-evaluates completion, and upserts the document.
// Serialized by saveMu.
func (c *Controller) save(ctx context.Context, reason string) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	src := c.cfg.Source
	position := src.CurrentTime()
	duration, hasDuration := src.Duration()

	c.mu.Lock()
	// A degraded player reports zeros; keep the last good values.
	if !c.degraded {
		if position > c.unit.LastPosition && (c.unit.Duration == 0 || position <= c.unit.Duration) {
			c.unit.LastPosition = position
		}
		if hasDuration && duration > 0 {
			c.unit.Duration = duration
		}
	}
	c.mu.Unlock()
	c.checkCompletion()

	c.mu.Lock()
	snapshot := c.eng.Snapshot()
	c.unit.BehavioralMetrics = &snapshot
	doc := c.doc
	c.mu.Unlock()

	start := time.Now()
	err := c.cfg.Store.Save(ctx, doc)
	metrics.RecordSave(reason, err, time.Since(start))
	return err
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
}

// Snapshot returns the live metrics for this session.
func (c *Controller) Snapshot() models.MetricsSnapshot {
	return c.eng.Snapshot()
}

// Progress returns the current course-level aggregate for the session's
// document.
func (c *Controller) Progress() models.CourseProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return models.CourseProgress{Status: models.StatusNotStarted}
	}
	return course.Aggregate(c.doc.Units)
}

// Teardown stops the session synchronously: timers and the event loop
// are gone and the final save has completed before it returns. Safe to
// call more than once.
func (c *Controller) Teardown(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	c.state = StateClosed
	wasDegraded := c.degraded
	c.mu.Unlock()

	if prev == StateIdle {
		return nil
	}

	c.tracker.Detach()
	close(c.stop)
	c.wg.Wait()
	if c.cancel != nil {
		c.cancel()
	}
	c.cfg.Source.Close()

	metrics.ActiveSessions.Dec()

	var err error
	if !wasDegraded {
		err = c.save(ctx, "teardown")
	}

	logging.Info().
		Str("session_id", c.sessionID).
		Str("user_id", c.cfg.UserID).
		Int("unit_index", c.cfg.UnitIndex).
		Msg("unit session torn down")
	return err
}
