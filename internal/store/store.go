// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package store persists progress documents. The primary implementation
// is BadgerDB-backed; a circuit breaker wrapper protects callers from a
// persistently failing backend.
package store

import (
	"context"
	"errors"

	"github.com/viewguard/viewguard/internal/models"
)

// ErrNotFound indicates no progress document exists for the identity.
// First-visit flows treat it as "start fresh", not as a failure.
var ErrNotFound = errors.New("store: progress document not found")

// ProgressStore is the persistence contract for progress documents.
type ProgressStore interface {
	// Load retrieves the document for (userID, courseID). Returns
	// ErrNotFound when none exists.
	Load(ctx context.Context, userID, courseID string) (*models.ProgressDocument, error)

	// Save upserts the document. Fields in the stored document that the
	// given document does not own (doc.Extra) are preserved, never
	// clobbered.
	Save(ctx context.Context, doc *models.ProgressDocument) error

	// Close releases store resources.
	Close() error
}
