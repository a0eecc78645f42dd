// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EngagementSummary aggregates a user's archived behavioral activity.
type EngagementSummary struct {
	UserID          string     `json:"userId"`
	TotalEvents     int64      `json:"totalEvents"`
	SessionCount    int64      `json:"sessionCount"`
	SeekCount       int64      `json:"seekCount"`
	RateChangeCount int64      `json:"rateChangeCount"`
	InteractionHits int64      `json:"interactionCount"`
	AvgPlaybackRate float64    `json:"avgPlaybackRate"`
	LastActivity    *time.Time `json:"lastActivity,omitempty"`
}

const summarySQL = `
SELECT
    COUNT(*)                                                  AS total_events,
    COUNT(DISTINCT session_id)                                AS session_count,
    COUNT(*) FILTER (WHERE name = 'seek')                     AS seek_count,
    COUNT(*) FILTER (WHERE name = 'rate_change')              AS rate_change_count,
    COUNT(*) FILTER (WHERE category = 'interaction')          AS interaction_count,
    COALESCE(AVG(playback_rate), 0)                           AS avg_playback_rate,
    MAX(ts)                                                   AS last_activity
FROM behavioral_events
WHERE user_id = ?`

// Summary computes the engagement summary for one user. A user with no
// archived events gets a zero summary, not an error.
func (a *Archive) Summary(ctx context.Context, userID string) (*EngagementSummary, error) {
	row := a.db.QueryRowContext(ctx, summarySQL, userID)

	s := &EngagementSummary{UserID: userID}
	var last sql.NullTime
	err := row.Scan(
		&s.TotalEvents, &s.SessionCount, &s.SeekCount,
		&s.RateChangeCount, &s.InteractionHits,
		&s.AvgPlaybackRate, &last,
	)
	if err != nil {
		return nil, fmt.Errorf("engagement summary for %s: %w", userID, err)
	}
	if last.Valid {
		s.LastActivity = &last.Time
	}
	return s, nil
}

const topSessionsSQL = `
SELECT session_id, COUNT(*) AS events, MIN(ts) AS started, MAX(ts) AS ended
FROM behavioral_events
WHERE user_id = ?
GROUP BY session_id
ORDER BY events DESC
LIMIT ?`

// SessionActivity is one session's archived footprint.
type SessionActivity struct {
	SessionID string    `json:"sessionId"`
	Events    int64     `json:"events"`
	Started   time.Time `json:"started"`
	Ended     time.Time `json:"ended"`
}

// TopSessions lists the user's busiest archived sessions.
func (a *Archive) TopSessions(ctx context.Context, userID string, limit int) ([]SessionActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := a.db.QueryContext(ctx, topSessionsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("top sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []SessionActivity
	for rows.Next() {
		var sa SessionActivity
		if err := rows.Scan(&sa.SessionID, &sa.Events, &sa.Started, &sa.Ended); err != nil {
			return nil, fmt.Errorf("scan session activity: %w", err)
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}
