// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package playback

import (
	"net/url"
	"strings"
)

// IsDirectMediaURL reports whether the unit URL points at a media file a
// native element can play, as opposed to an embeddable player page.
func IsDirectMediaURL(raw string) bool {
	trimmed := raw
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	lower := strings.ToLower(trimmed)
	return strings.HasSuffix(lower, ".mp4") ||
		strings.HasSuffix(lower, ".webm") ||
		strings.HasSuffix(lower, ".ogg")
}

// EmbedVideoID extracts the embeddable video identifier from the URL
// forms learners paste: watch?v=ID, youtu.be/ID, and /embed/ID.
// Returns ok=false when no identifier can be extracted.
func EmbedVideoID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	switch {
	case strings.Contains(u.Host, "youtube.com") && u.Path == "/watch":
		id := u.Query().Get("v")
		return id, id != ""
	case strings.Contains(u.Host, "youtu.be"):
		id := strings.Trim(u.Path, "/")
		if i := strings.Index(id, "/"); i >= 0 {
			id = id[:i]
		}
		return id, id != ""
	case strings.Contains(u.Path, "/embed/"):
		rest := u.Path[strings.Index(u.Path, "/embed/")+len("/embed/"):]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		return rest, rest != ""
	}
	return "", false
}
