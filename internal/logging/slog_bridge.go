// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge implements slog.Handler on top of zerolog so that libraries
// requiring *slog.Logger (the suture event hook via sutureslog) share the
// global log output.
type slogBridge struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	prefix string
}

// NewSlogLogger returns an slog.Logger backed by the global zerolog logger.
//
//	hook := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{logger: Logger()})
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	var zl zerolog.Level
	switch {
	case level < slog.LevelDebug:
		zl = zerolog.TraceLevel
	case level < slog.LevelInfo:
		zl = zerolog.DebugLevel
	case level < slog.LevelWarn:
		zl = zerolog.InfoLevel
	case level < slog.LevelError:
		zl = zerolog.WarnLevel
	default:
		zl = zerolog.ErrorLevel
	}
	return b.logger.GetLevel() <= zl
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	var event *zerolog.Event
	switch record.Level {
	case slog.LevelDebug:
		event = b.logger.Debug()
	case slog.LevelWarn:
		event = b.logger.Warn()
	case slog.LevelError:
		event = b.logger.Error()
	default:
		event = b.logger.Info()
	}

	for _, attr := range b.attrs {
		event = b.appendAttr(event, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = b.appendAttr(event, attr)
		return true
	})

	event.Msg(record.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{logger: b.logger, attrs: merged, prefix: b.prefix}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	return &slogBridge{logger: b.logger, attrs: b.attrs, prefix: b.prefix + name + "."}
}

func (b *slogBridge) appendAttr(event *zerolog.Event, attr slog.Attr) *zerolog.Event {
	key := b.prefix + attr.Key
	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	case slog.KindGroup:
		for _, ga := range attr.Value.Group() {
			event = event.Interface(key+"."+ga.Key, ga.Value.Any())
		}
		return event
	default:
		return event.Interface(key, attr.Value.Any())
	}
}
