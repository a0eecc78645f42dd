// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package models

import "time"

// Unit is one addressable piece of course content: a video or a quiz.
// Definitions are authored externally; this core reads them only.
type Unit struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`

	// VerificationCode optionally gates quiz completion. Compared
	// case-insensitively against the learner's confirmation input.
	VerificationCode string `json:"verificationCode,omitempty"`
}

// Course is an ordered list of units plus an availability window and an
// optional employee-ID allow-list.
type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color,omitempty"`

	// StartDate and EndDate bound the availability window, formatted
	// YYYY-MM-DD. Either empty means the course is always available.
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	Units []Unit `json:"parts"`

	// AllowedUserIDs restricts viewing to the listed employee IDs.
	// Empty means the course is open to everyone.
	AllowedUserIDs []string `json:"allowedUserIds,omitempty"`
}

// AvailableAt reports whether the course is open at the given instant.
// The end date is inclusive through the last moment of that day.
func (c *Course) AvailableAt(now time.Time) bool {
	if c.StartDate == "" || c.EndDate == "" {
		return true
	}
	start, err := time.ParseInLocation("2006-01-02", c.StartDate, now.Location())
	if err != nil {
		return true
	}
	end, err := time.ParseInLocation("2006-01-02", c.EndDate, now.Location())
	if err != nil {
		return true
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	return !now.Before(start) && !now.After(end)
}

// ViewableBy reports whether the given employee ID may open the course
// at the given instant. Admins bypass the allow-list but not the
// availability window check performed here.
func (c *Course) ViewableBy(employeeID string, isAdmin bool, now time.Time) bool {
	if !c.AvailableAt(now) {
		return false
	}
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	if isAdmin {
		return true
	}
	if employeeID == "" {
		return false
	}
	for _, id := range c.AllowedUserIDs {
		if id == employeeID {
			return true
		}
	}
	return false
}
