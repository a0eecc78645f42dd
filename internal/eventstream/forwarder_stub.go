// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

//go:build !nats

package eventstream

import (
	"context"
	"fmt"

	"github.com/viewguard/viewguard/internal/tracking"
)

// Forwarder is a stub when NATS dependencies are not compiled in.
// Build with -tags=nats to enable JetStream forwarding.
type Forwarder struct{}

// NewForwarder returns an error when NATS support is not compiled in.
// Build with -tags=nats to enable JetStream forwarding.
func NewForwarder(cfg Config) (*Forwarder, error) {
	return nil, fmt.Errorf("event stream forwarder not available: build with -tags=nats")
}

// Start is a stub that returns an error.
func (f *Forwarder) Start(ctx context.Context, bus *tracking.Bus) error {
	return fmt.Errorf("event stream forwarder not available: build with -tags=nats")
}

// Close is a no-op stub.
func (f *Forwarder) Close() error {
	return nil
}
