// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package archive

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/metrics"
	"github.com/viewguard/viewguard/internal/tracking"
)

// MessageSource is the subscription the consumer drains. Implemented by
// the tracking bus.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Consumer drains the behavioral event firehose into the archive.
type Consumer struct {
	source  MessageSource
	archive *Archive
	done    chan struct{}
}

// NewConsumer wires the firehose topic to the archive.
func NewConsumer(source MessageSource, a *Archive) *Consumer {
	return &Consumer{source: source, archive: a, done: make(chan struct{})}
}

// Start subscribes and consumes until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	messages, err := c.source.Subscribe(ctx, tracking.TopicAllEvents)
	if err != nil {
		return err
	}

	go func() {
		defer close(c.done)
		for msg := range messages {
			event, err := tracking.DecodeEvent(msg)
			if err != nil {
				metrics.EventsDropped.WithLabelValues("decode").Inc()
				logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("undecodable archive event")
				msg.Ack()
				continue
			}
			if err := c.archive.Append(ctx, event); err != nil {
				logging.Error().Err(err).Str("event_id", event.EventID).Msg("archive append failed")
			}
			msg.Ack()
		}
	}()
	return nil
}

// Wait blocks until the consumer goroutine has drained and exited.
func (c *Consumer) Wait() {
	<-c.done
}
