// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

//go:build nats

package eventstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/tracking"
)

// Forwarder bridges the in-process bus to JetStream.
type Forwarder struct {
	cfg       Config
	embedded  *server.Server
	conn      *natsgo.Conn
	publisher message.Publisher
	done      chan struct{}
}

// NewForwarder starts the embedded server when configured, ensures the
// stream exists, and builds the publisher.
func NewForwarder(cfg Config) (*Forwarder, error) {
	if cfg.StreamName == "" {
		cfg.StreamName = "BEHAVIORAL_EVENTS"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}

	f := &Forwarder{cfg: cfg, done: make(chan struct{})}

	if cfg.EmbeddedServer {
		opts := &server.Options{
			ServerName: "viewguard-events",
			Host:       "127.0.0.1",
			Port:       -1, // random free port
			JetStream:  true,
			StoreDir:   cfg.StoreDir,
			NoLog:      true,
		}
		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("create embedded nats server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(30 * time.Second) {
			ns.Shutdown()
			return nil, errors.New("embedded nats server not ready within timeout")
		}
		f.embedded = ns
		f.cfg.URL = ns.ClientURL()
	}

	conn, err := natsgo.Connect(f.cfg.URL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
	)
	if err != nil {
		f.shutdownEmbedded()
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	f.conn = conn

	if err := f.ensureStream(); err != nil {
		f.Close()
		return nil, err
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: f.cfg.URL,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // stream is pre-created by ensureStream
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, watermill.NopLogger{})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create jetstream publisher: %w", err)
	}
	f.publisher = pub

	return f, nil
}

// ensureStream creates or updates the behavioral event stream.
// Idempotent.
func (f *Forwarder) ensureStream() error {
	js, err := jetstream.New(f.conn)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	streamCfg := jetstream.StreamConfig{
		Name:        f.cfg.StreamName,
		Subjects:    []string{Subject},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      f.cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  2 * time.Minute,
		AllowDirect: true,
	}

	_, err = js.Stream(ctx, f.cfg.StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", f.cfg.StreamName, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", f.cfg.StreamName, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", f.cfg.StreamName, err)
	}
	return nil
}

// Start drains the firehose topic into JetStream until the context is
// cancelled.
func (f *Forwarder) Start(ctx context.Context, bus *tracking.Bus) error {
	messages, err := bus.Subscribe(ctx, tracking.TopicAllEvents)
	if err != nil {
		return fmt.Errorf("subscribe firehose: %w", err)
	}

	go func() {
		defer close(f.done)
		for msg := range messages {
			if err := f.publisher.Publish(Subject, msg); err != nil {
				logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("jetstream forward failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()

	logging.Info().Str("stream", f.cfg.StreamName).Str("url", f.cfg.URL).Msg("event stream forwarder started")
	return nil
}

func (f *Forwarder) shutdownEmbedded() {
	if f.embedded != nil {
		f.embedded.Shutdown()
		f.embedded.WaitForShutdown()
	}
}

// Close releases the publisher, the connection, and the embedded server.
func (f *Forwarder) Close() error {
	var firstErr error
	if f.publisher != nil {
		if err := f.publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if f.conn != nil {
		f.conn.Close()
	}
	f.shutdownEmbedded()
	return firstErr
}
