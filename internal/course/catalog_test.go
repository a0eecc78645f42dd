// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package course

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/viewguard/viewguard/internal/models"
)

const catalogYAML = `courses:
  - id: golang-101
    title: Go Fundamentals
    color: "#00ADD8"
    startDate: "2026-01-01"
    endDate: "2026-12-31"
    parts:
      - type: video
        title: Intro
        url: https://cdn.example.com/intro.mp4
      - type: quiz
        title: Checkpoint
        verificationCode: GOPHER
  - id: restricted-201
    title: Internal Systems
    allowedUserIds: ["emp-1", "emp-2"]
    parts:
      - type: video
        title: Overview
        url: https://cdn.example.com/ov.mp4
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courses.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, catalogYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cat.Len() != 2 {
		t.Fatalf("len = %d, want 2", cat.Len())
	}
	crs := cat.Get("golang-101")
	if crs == nil {
		t.Fatal("golang-101 missing")
	}
	if len(crs.Units) != 2 {
		t.Fatalf("units = %d, want 2", len(crs.Units))
	}
	if crs.Units[1].Type != models.UnitTypeQuiz || crs.Units[1].VerificationCode != "GOPHER" {
		t.Errorf("quiz unit wrong: %+v", crs.Units[1])
	}
	if crs.StartDate != "2026-01-01" || crs.EndDate != "2026-12-31" {
		t.Errorf("window = %s..%s", crs.StartDate, crs.EndDate)
	}
	if cat.Get("nope") != nil {
		t.Error("unknown id must return nil")
	}
}

func TestViewableCoursesRespectsAllowList(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, catalogYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	visible := cat.ViewableCourses("emp-1", false, now)
	if len(visible) != 2 {
		t.Fatalf("emp-1 sees %d courses, want 2", len(visible))
	}

	visible = cat.ViewableCourses("emp-9", false, now)
	if len(visible) != 1 || visible[0].ID != "golang-101" {
		t.Fatalf("emp-9 should only see the open course, got %d", len(visible))
	}

	visible = cat.ViewableCourses("emp-9", true, now)
	if len(visible) != 2 {
		t.Fatalf("admin sees %d courses, want 2", len(visible))
	}
}

func TestViewableCoursesRespectsWindow(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, catalogYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	after := time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)

	visible := cat.ViewableCourses("emp-1", false, after)
	if len(visible) != 1 || visible[0].ID != "restricted-201" {
		t.Fatalf("expired course must be hidden, got %d", len(visible))
	}
}

func TestCatalogRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		courses []models.Course
	}{
		{"missing id", []models.Course{{Title: "x", Units: []models.Unit{{Type: "video"}}}}},
		{"duplicate id", []models.Course{
			{ID: "a", Units: []models.Unit{{Type: "video"}}},
			{ID: "a", Units: []models.Unit{{Type: "video"}}},
		}},
		{"no units", []models.Course{{ID: "a"}}},
		{"unknown unit type", []models.Course{{ID: "a", Units: []models.Unit{{Type: "podcast"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.courses); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
