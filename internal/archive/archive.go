// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package archive persists the behavioral event stream into DuckDB for
// offline engagement analysis. Writes are buffered and flushed in
// batches; reads power the engagement summary endpoint.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/metrics"
	"github.com/viewguard/viewguard/internal/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS behavioral_events (
    event_id           VARCHAR PRIMARY KEY,
    ts                 TIMESTAMP NOT NULL,
    session_id         VARCHAR NOT NULL,
    user_id            VARCHAR NOT NULL,
    category           VARCHAR NOT NULL,
    name               VARCHAR NOT NULL,
    page_url           VARCHAR,
    device_type        VARCHAR,
    video_current_time DOUBLE,
    video_duration     DOUBLE,
    playback_rate      DOUBLE,
    seek_from          DOUBLE,
    seek_to            DOUBLE,
    target_id          VARCHAR,
    target_type        VARCHAR
)`

const insertSQL = `
INSERT OR IGNORE INTO behavioral_events (
    event_id, ts, session_id, user_id, category, name,
    page_url, device_type,
    video_current_time, video_duration, playback_rate,
    seek_from, seek_to, target_id, target_type
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Config tunes the archive writer.
type Config struct {
	Path          string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns production batching defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// Archive is the DuckDB-backed behavioral event sink.
type Archive struct {
	db  *sql.DB
	cfg Config

	mu     sync.Mutex
	buffer []*models.BehavioralEvent
	closed bool

	// flushMu serializes flushes so timer and batch triggers cannot
	// interleave their inserts.
	flushMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// Open creates or opens the archive database and starts the flush loop.
func Open(cfg Config) (*Archive, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("archive: batch size must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("archive: flush interval must be positive")
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", cfg.Path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create behavioral_events table: %w", err)
	}

	a := &Archive{
		db:     db,
		cfg:    cfg,
		buffer: make([]*models.BehavioralEvent, 0, cfg.BatchSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go a.flushLoop()
	return a, nil
}

// Append buffers one event. A full buffer triggers an immediate flush.
func (a *Archive) Append(ctx context.Context, event *models.BehavioralEvent) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("archive: closed")
	}
	a.buffer = append(a.buffer, event)
	full := len(a.buffer) >= a.cfg.BatchSize
	a.mu.Unlock()

	if full {
		return a.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered events in one transaction.
func (a *Archive) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	batch := a.buffer
	a.buffer = make([]*models.BehavioralEvent, 0, a.cfg.BatchSize)
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		a.requeue(batch)
		metrics.ArchiveErrors.Inc()
		return fmt.Errorf("begin archive tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		a.requeue(batch)
		metrics.ArchiveErrors.Inc()
		return fmt.Errorf("prepare archive insert: %w", err)
	}

	for _, ev := range batch {
		p := ev.Payload
		_, err := stmt.ExecContext(ctx,
			ev.EventID, ev.Timestamp, ev.SessionID, ev.UserID, ev.Category, ev.Name,
			ev.Context.PageURL, ev.Context.DeviceType,
			nullable(p.VideoCurrentTime), nullable(p.VideoDuration), nullable(p.PlaybackRate),
			nullable(p.SeekFrom), nullable(p.SeekTo),
			nullString(p.TargetID), nullString(p.TargetType),
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			a.requeue(batch)
			metrics.ArchiveErrors.Inc()
			return fmt.Errorf("insert event %s: %w", ev.EventID, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		a.requeue(batch)
		metrics.ArchiveErrors.Inc()
		return fmt.Errorf("commit archive batch: %w", err)
	}

	metrics.ArchiveBatchSize.Observe(float64(len(batch)))
	logging.Debug().Int("events", len(batch)).Msg("archive batch flushed")
	return nil
}

// requeue puts a failed batch back at the head of the buffer so the
// next flush retries it.
func (a *Archive) requeue(batch []*models.BehavioralEvent) {
	a.mu.Lock()
	a.buffer = append(batch, a.buffer...)
	a.mu.Unlock()
}

func (a *Archive) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := a.Flush(ctx); err != nil {
				logging.Error().Err(err).Msg("archive flush failed")
			}
			cancel()
		}
	}
}

// Close flushes pending events and closes the database.
func (a *Archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)
	<-a.done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	flushErr := a.Flush(ctx)

	if err := a.db.Close(); err != nil {
		return err
	}
	return flushErr
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
