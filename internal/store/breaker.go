// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package store

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/models"
)

// BreakerConfig tunes the circuit breaker around a progress store.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns conservative settings: trip after five
// consecutive failures, probe again after thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "progress-store",
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore wraps a ProgressStore with circuit breaker protection so
// a failing backend sheds load fast instead of stalling every session's
// autosave tick.
type BreakerStore struct {
	inner ProgressStore
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps inner with a circuit breaker.
func NewBreakerStore(inner ProgressStore, cfg BreakerConfig) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("progress store circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// A missing document is a normal answer, not a backend fault.
			return err == nil || errors.Is(err, ErrNotFound)
		},
	}

	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Load retrieves a document through the breaker.
func (s *BreakerStore) Load(ctx context.Context, userID, courseID string) (*models.ProgressDocument, error) {
	result, err := s.cb.Execute(func() (any, error) {
		return s.inner.Load(ctx, userID, courseID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.ProgressDocument), nil
}

// Save upserts a document through the breaker.
func (s *BreakerStore) Save(ctx context.Context, doc *models.ProgressDocument) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.inner.Save(ctx, doc)
	})
	return err
}

// Close closes the wrapped store directly; teardown must not be
// blocked by an open breaker.
func (s *BreakerStore) Close() error {
	return s.inner.Close()
}

// State returns the breaker state string for monitoring.
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}
