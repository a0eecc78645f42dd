// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package tracking

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/metrics"
	"github.com/viewguard/viewguard/internal/models"
)

// TopicAllEvents is the firehose topic carrying every behavioral event
// regardless of session. Consumed by the archive and the optional
// stream forwarder.
const TopicAllEvents = "behavioral.events"

// TopicForSession returns the per-session behavioral event topic. One
// topic per unit session keeps event streams isolated: nothing published
// for a torn-down session can reach a later one.
func TopicForSession(sessionID string) string {
	return "behavioral.events." + sessionID
}

// Bus is the in-process behavioral event bus. Trackers publish to it;
// each unit session's metrics consumer subscribes to its own topic.
type Bus struct {
	channel *gochannel.GoChannel
}

// NewBus creates the event bus.
func NewBus() *Bus {
	return &Bus{
		channel: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			newWatermillLogger(logging.Logger()),
		),
	}
}

// Publish serializes and publishes one behavioral event.
func (b *Bus) Publish(topic string, event *models.BehavioralEvent) error {
	if err := event.Validate(); err != nil {
		metrics.EventsDropped.WithLabelValues("validation").Inc()
		return fmt.Errorf("publish behavioral event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("validation").Inc()
		return fmt.Errorf("marshal behavioral event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	if err := b.channel.Publish(topic, msg); err != nil {
		metrics.EventsDropped.WithLabelValues("publish").Inc()
		return err
	}
	if topic != TopicAllEvents {
		firehose := message.NewMessage(event.EventID, data)
		if err := b.channel.Publish(TopicAllEvents, firehose); err != nil {
			metrics.EventsDropped.WithLabelValues("publish").Inc()
			return err
		}
	}
	metrics.RecordEvent(event.Category, event.Name)
	return nil
}

// Subscribe returns the message stream for a topic. The stream closes
// when the context is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.channel.Subscribe(ctx, topic)
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.channel.Close()
}

// DecodeEvent unmarshals a bus message back into a behavioral event.
func DecodeEvent(msg *message.Message) (*models.BehavioralEvent, error) {
	var event models.BehavioralEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode behavioral event: %w", err)
	}
	return &event, nil
}

// watermillLogger adapts zerolog to watermill's LoggerAdapter.
type watermillLogger struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

func newWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger}
}

func (l *watermillLogger) event(event *zerolog.Event, msg string, err error, fields watermill.LogFields) {
	for k, v := range l.fields {
		event = event.Interface(k, v)
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error(), msg, err, fields)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), msg, nil, fields)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), msg, nil, fields)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), msg, nil, fields)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{logger: l.logger, fields: merged}
}
