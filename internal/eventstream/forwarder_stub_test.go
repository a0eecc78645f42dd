// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

//go:build !nats

package eventstream

import (
	"context"
	"testing"
)

func TestNewForwarderStub(t *testing.T) {
	t.Parallel()

	fwd, err := NewForwarder(Config{URL: "nats://localhost:4222"})
	if err == nil {
		t.Error("NewForwarder() should return error in non-NATS build")
	}
	if fwd != nil {
		t.Error("NewForwarder() should return nil forwarder")
	}
}

func TestForwarderStubMethods(t *testing.T) {
	t.Parallel()

	fwd := &Forwarder{}

	if err := fwd.Start(context.Background(), nil); err == nil {
		t.Error("Start() should return error in non-NATS build")
	}
	if err := fwd.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
