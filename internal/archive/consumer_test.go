// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package archive

import (
	"context"
	"testing"
	"time"

	"github.com/viewguard/viewguard/internal/models"
	"github.com/viewguard/viewguard/internal/tracking"
)

func TestConsumerDrainsFirehose(t *testing.T) {
	a := newTestArchive(t)
	bus := tracking.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewConsumer(bus, a)
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	ev := archiveEvent("emp-1", "s1", models.CategoryVideoPlayer, models.EventPlay)
	if err := bus.Publish(tracking.TopicForSession("s1"), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The consumer is asynchronous; poll until the event lands.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := a.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := a.Summary(ctx, "emp-1")
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if s.TotalEvents == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event never reached archive, have %d", s.TotalEvents)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
