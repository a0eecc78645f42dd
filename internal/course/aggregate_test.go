// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package course

import (
	"testing"
	"time"

	"github.com/viewguard/viewguard/internal/models"
)

func TestAggregateMixedCompletion(t *testing.T) {
	units := []models.UnitProgress{
		{UnitIndex: 0, Type: models.UnitTypeVideo, Completed: true},
		{UnitIndex: 1, Type: models.UnitTypeQuiz, QuizCompleted: true},
		{UnitIndex: 2, Type: models.UnitTypeVideo},
	}

	got := Aggregate(units)
	if got.CompletionRate != 67 {
		t.Errorf("CompletionRate = %d, want 67", got.CompletionRate)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("Status = %s, want %s", got.Status, models.StatusInProgress)
	}
	if got.CompletedUnits != 2 || got.TotalUnits != 3 {
		t.Errorf("CompletedUnits/TotalUnits = %d/%d, want 2/3", got.CompletedUnits, got.TotalUnits)
	}
}

func TestAggregateAllComplete(t *testing.T) {
	units := []models.UnitProgress{
		{UnitIndex: 0, Completed: true},
		{UnitIndex: 1, Completed: true},
		{UnitIndex: 2, QuizCompleted: true},
	}

	got := Aggregate(units)
	if got.CompletionRate != 100 {
		t.Errorf("CompletionRate = %d, want 100", got.CompletionRate)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want %s", got.Status, models.StatusCompleted)
	}
}

func TestAggregateNoneComplete(t *testing.T) {
	units := []models.UnitProgress{
		{UnitIndex: 0},
		{UnitIndex: 1},
	}

	got := Aggregate(units)
	if got.CompletionRate != 0 {
		t.Errorf("CompletionRate = %d, want 0", got.CompletionRate)
	}
	if got.Status != models.StatusNotStarted {
		t.Errorf("Status = %s, want %s", got.Status, models.StatusNotStarted)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if got.Status != models.StatusNotStarted {
		t.Errorf("Status = %s, want %s", got.Status, models.StatusNotStarted)
	}
	if got.CompletionRate != 0 {
		t.Errorf("CompletionRate = %d, want 0", got.CompletionRate)
	}
}

func TestAggregateRounding(t *testing.T) {
	// 1 of 6 complete: 16.67 rounds to 17.
	units := make([]models.UnitProgress, 6)
	units[0].Completed = true

	if got := Aggregate(units).CompletionRate; got != 17 {
		t.Errorf("CompletionRate = %d, want 17", got)
	}
}

func TestBackfillGrowth(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	definition := []models.Unit{
		{Type: models.UnitTypeVideo, Title: "Part1"},
		{Type: models.UnitTypeVideo, Title: "Part2"},
		{Type: models.UnitTypeQuiz, Title: "Final Quiz"},
	}
	persisted := []models.UnitProgress{
		{UnitIndex: 0, UnitTitle: "Part1", Type: models.UnitTypeVideo, Completed: true},
	}

	units, grown := Backfill(persisted, definition, now)
	if !grown {
		t.Fatal("expected grown=true")
	}
	if len(units) != 3 {
		t.Fatalf("len(units) = %d, want 3", len(units))
	}

	// Existing record untouched.
	if !units[0].Completed || units[0].UnitIndex != 0 {
		t.Errorf("existing record modified: %+v", units[0])
	}

	// Appended records are fresh not-started entries.
	if units[1].UnitIndex != 1 || units[1].UnitTitle != "Part2" || units[1].Completed {
		t.Errorf("backfilled unit 1 = %+v", units[1])
	}
	if units[2].UnitIndex != 2 || units[2].Type != models.UnitTypeQuiz {
		t.Errorf("backfilled unit 2 = %+v", units[2])
	}
}

func TestBackfillNoChange(t *testing.T) {
	now := time.Now()
	definition := []models.Unit{{Type: models.UnitTypeVideo, Title: "Part1"}}
	persisted := []models.UnitProgress{{UnitIndex: 0, UnitTitle: "Part1"}}

	units, grown := Backfill(persisted, definition, now)
	if grown {
		t.Error("expected grown=false for unchanged definition")
	}
	if len(units) != 1 {
		t.Errorf("len(units) = %d, want 1", len(units))
	}
}

// Shrinkage is documented as not handled: stale records survive.
func TestBackfillIgnoresShrinkage(t *testing.T) {
	now := time.Now()
	definition := []models.Unit{{Type: models.UnitTypeVideo, Title: "Part1"}}
	persisted := []models.UnitProgress{
		{UnitIndex: 0, UnitTitle: "Part1"},
		{UnitIndex: 1, UnitTitle: "Removed Part", Completed: true},
	}

	units, grown := Backfill(persisted, definition, now)
	if grown {
		t.Error("expected grown=false")
	}
	if len(units) != 2 {
		t.Errorf("stale record dropped: len = %d, want 2", len(units))
	}
}
