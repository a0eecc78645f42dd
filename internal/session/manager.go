// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/viewguard/viewguard/internal/models"
	"github.com/viewguard/viewguard/internal/playback"
	"github.com/viewguard/viewguard/internal/store"
	"github.com/viewguard/viewguard/internal/tracking"
)

// ErrSessionNotFound indicates no live session matches the identifier.
var ErrSessionNotFound = errors.New("session: not found")

// Manager tracks live unit sessions. A user has at most one live
// session per course; activating a new unit tears the previous one down
// first so its timers and listeners cannot outlive it.
type Manager struct {
	store store.ProgressStore
	bus   *tracking.Bus

	mu sync.Mutex
	// byCourse maps userID_courseID to the live controller.
	byCourse map[string]*Controller
	// bySession maps session IDs to controllers for transport routing.
	bySession map[string]*Controller
}

// NewManager creates an empty session registry.
func NewManager(progressStore store.ProgressStore, bus *tracking.Bus) *Manager {
	return &Manager{
		store:     progressStore,
		bus:       bus,
		byCourse:  make(map[string]*Controller),
		bySession: make(map[string]*Controller),
	}
}

// ActivateRequest carries everything needed to start a unit session.
type ActivateRequest struct {
	UserID      string
	Course      *models.Course
	UnitIndex   int
	Source      playback.Source
	PageURL     string
	UserAgent   string
	GuardBypass bool
}

// Activate starts a session for the request, replacing any live session
// the user has in the same course.
func (m *Manager) Activate(ctx context.Context, req ActivateRequest) (*Controller, error) {
	if req.Course == nil {
		return nil, errors.New("session: course is required")
	}
	courseKey := models.DocumentKey(req.UserID, req.Course.ID)

	m.mu.Lock()
	previous := m.byCourse[courseKey]
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Teardown(ctx); err != nil {
			return nil, err
		}
		m.remove(previous)
	}

	ctrl, err := NewController(Config{
		UserID:      req.UserID,
		Course:      req.Course,
		UnitIndex:   req.UnitIndex,
		Source:      req.Source,
		Store:       m.store,
		Bus:         m.bus,
		PageURL:     req.PageURL,
		UserAgent:   req.UserAgent,
		GuardBypass: req.GuardBypass,
	})
	if err != nil {
		return nil, err
	}
	if err := ctrl.Activate(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.byCourse[courseKey] = ctrl
	m.bySession[ctrl.SessionID()] = ctrl
	m.mu.Unlock()
	return ctrl, nil
}

// Lookup resolves a live controller by session ID.
func (m *Manager) Lookup(sessionID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.bySession[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// Teardown ends the identified session.
func (m *Manager) Teardown(ctx context.Context, sessionID string) error {
	ctrl, err := m.Lookup(sessionID)
	if err != nil {
		return err
	}
	err = ctrl.Teardown(ctx)
	m.remove(ctrl)
	return err
}

// TeardownAll ends every live session. Used on shutdown.
func (m *Manager) TeardownAll(ctx context.Context) error {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.bySession))
	for _, ctrl := range m.bySession {
		controllers = append(controllers, ctrl)
	}
	m.mu.Unlock()

	var firstErr error
	for _, ctrl := range controllers {
		if err := ctrl.Teardown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		m.remove(ctrl)
	}
	return firstErr
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySession)
}

func (m *Manager) remove(ctrl *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySession, ctrl.SessionID())
	key := models.DocumentKey(ctrl.cfg.UserID, ctrl.cfg.Course.ID)
	if m.byCourse[key] == ctrl {
		delete(m.byCourse, key)
	}
}
