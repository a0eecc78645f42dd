// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package models defines the data structures shared across Viewguard:
// behavioral events, engagement metrics snapshots, per-unit progress
// records, course-level aggregates, and course definitions.
//
// Serialized field names are a compatibility contract. Behavioral events
// use the snake_case LMS User Behavioral Event Schema; progress documents
// and metrics snapshots use the camelCase names that export tooling and
// dashboards already consume. Do not rename JSON tags here without
// coordinating a schema migration.
package models
