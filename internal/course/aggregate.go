// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package course rolls per-unit progress into course-level completion
// state and back-fills progress arrays when a course definition grows.
package course

import (
	"math"
	"time"

	"github.com/viewguard/viewguard/internal/models"
)

// Aggregate computes the course-level completion rate and status over a
// unit progress collection. Pure function; recomputed on every save.
func Aggregate(units []models.UnitProgress) models.CourseProgress {
	total := len(units)
	if total == 0 {
		return models.CourseProgress{Status: models.StatusNotStarted}
	}

	completed := 0
	for i := range units {
		if units[i].IsComplete() {
			completed++
		}
	}

	rate := int(math.Round(100 * float64(completed) / float64(total)))

	status := models.StatusInProgress
	switch rate {
	case 0:
		status = models.StatusNotStarted
	case 100:
		status = models.StatusCompleted
	}

	return models.CourseProgress{
		CompletionRate: rate,
		Status:         status,
		CompletedUnits: completed,
		TotalUnits:     total,
	}
}

// Backfill reconciles a persisted unit progress array against the
// current course definition when the course has grown more units than
// previously recorded: any unit index present in the definition but
// absent from the array is appended as a fresh not-started record.
//
// Shrinkage and reordering are deliberately not handled; a record whose
// index no longer exists in the definition is left untouched. This
// mirrors the historical back-fill behavior other tooling expects.
//
// Returns the reconciled array and whether anything was added (the
// caller persists once if so).
func Backfill(units []models.UnitProgress, definition []models.Unit, now time.Time) ([]models.UnitProgress, bool) {
	present := make(map[int]bool, len(units))
	for i := range units {
		present[units[i].UnitIndex] = true
	}

	grown := false
	for idx, unit := range definition {
		if present[idx] {
			continue
		}
		fresh := models.NewUnitProgress(idx, unit.Title, unit.Type)
		fresh.LastAccessTime = now
		units = append(units, fresh)
		grown = true
	}

	return units, grown
}
