// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package eventstream forwards the behavioral event firehose into NATS
// JetStream so external consumers (reporting, data warehouse loads) can
// replay it. The package is optional: build with -tags=nats.
package eventstream

import "time"

// Subject is the JetStream subject behavioral events land on.
const Subject = "behavioral.events"

// Config holds the forwarder settings.
type Config struct {
	URL            string
	StreamName     string
	EmbeddedServer bool
	StoreDir       string

	// MaxAge bounds stream retention. Zero means 7 days.
	MaxAge time.Duration
}
