// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package guard

import "testing"

func TestClampBeyondBuffer(t *testing.T) {
	g := New(120, 2, false)

	decision := g.Observe(125)
	if decision.Action != ActionClamp {
		t.Fatalf("Action = %v, want ActionClamp", decision.Action)
	}
	if decision.Target != 120 {
		t.Errorf("Target = %v, want 120", decision.Target)
	}
	if g.Watermark() != 120 {
		t.Errorf("watermark after clamp = %v, want 120 (unchanged)", g.Watermark())
	}
}

func TestAdvanceWithinBuffer(t *testing.T) {
	g := New(120, 2, false)

	decision := g.Observe(121)
	if decision.Action != ActionAdvance {
		t.Fatalf("Action = %v, want ActionAdvance", decision.Action)
	}
	if g.Watermark() != 121 {
		t.Errorf("watermark = %v, want 121", g.Watermark())
	}
}

func TestNoActionBehindWatermark(t *testing.T) {
	g := New(120, 2, false)

	for _, position := range []float64{120, 100, 0} {
		decision := g.Observe(position)
		if decision.Action != ActionNone {
			t.Errorf("Observe(%v).Action = %v, want ActionNone", position, decision.Action)
		}
	}
	if g.Watermark() != 120 {
		t.Errorf("watermark moved backward: %v", g.Watermark())
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	g := New(0, 2, false)

	positions := []float64{1, 2, 3, 1.5, 4, 0.5, 5}
	for _, p := range positions {
		g.Observe(p)
	}
	if g.Watermark() != 5 {
		t.Errorf("watermark = %v, want 5", g.Watermark())
	}
}

func TestBypassCapability(t *testing.T) {
	g := New(10, 2, true)

	decision := g.Observe(500)
	if decision.Action == ActionClamp {
		t.Fatal("bypassed guard must never clamp")
	}
	// Watermark still tracks progress so a save retains the position.
	if g.Watermark() != 500 {
		t.Errorf("bypassed watermark = %v, want 500", g.Watermark())
	}
	if !g.Bypassed() {
		t.Error("Bypassed() = false, want true")
	}
}

func TestSeededFromPersistedPosition(t *testing.T) {
	g := New(300, 2, false)
	if g.Watermark() != 300 {
		t.Errorf("seeded watermark = %v, want 300", g.Watermark())
	}

	// Resuming exactly at the persisted position is never a skip.
	if decision := g.Observe(300); decision.Action == ActionClamp {
		t.Error("resume at watermark clamped")
	}
}

func TestNegativeSeedClamped(t *testing.T) {
	g := New(-5, 2, false)
	if g.Watermark() != 0 {
		t.Errorf("watermark = %v, want 0", g.Watermark())
	}
}

func TestZeroBufferUsesDefault(t *testing.T) {
	g := New(100, 0, false)

	// With the 2s default buffer, 101.5 is tolerated jitter.
	if decision := g.Observe(101.5); decision.Action == ActionClamp {
		t.Error("position within default buffer clamped")
	}
	// Watermark advanced to 101.5; beyond 103.5 must clamp.
	if decision := g.Observe(104); decision.Action != ActionClamp {
		t.Error("position beyond default buffer not clamped")
	}
}
