// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package metrics defines the Prometheus instrumentation for the
// engagement core: session lifecycle, behavioral event flow, progress
// persistence, and guard activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewguard_active_sessions",
			Help: "Current number of live unit sessions",
		},
	)

	SessionActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_session_activations_total",
			Help: "Total unit session activations",
		},
		[]string{"unit_type"}, // "video", "quiz"
	)

	SessionsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_sessions_degraded_total",
			Help: "Total sessions degraded by player unavailability",
		},
	)

	UnitsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_units_completed_total",
			Help: "Total unit completions",
		},
		[]string{"unit_type"},
	)

	// Behavioral Event Metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_events_processed_total",
			Help: "Total behavioral events processed",
		},
		[]string{"category", "name"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_events_dropped_total",
			Help: "Total behavioral events dropped",
		},
		[]string{"reason"}, // "validation", "decode", "publish"
	)

	// Guard Metrics
	GuardCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_guard_corrections_total",
			Help: "Total forced seeks issued by the anti-skip guard",
		},
	)

	GuardBypassedSeeks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_guard_bypassed_seeks_total",
			Help: "Total forward seeks allowed under reviewer bypass",
		},
	)

	// Progress Store Metrics
	SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewguard_progress_save_duration_seconds",
			Help:    "Duration of progress document saves",
			Buckets: prometheus.DefBuckets,
		},
	)

	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_progress_saves_total",
			Help: "Total progress save attempts",
		},
		[]string{"reason", "outcome"}, // reason: "autosave", "pause", "seek", "complete", "teardown"
	)

	// Archive Metrics
	ArchiveBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewguard_archive_batch_size",
			Help:    "Number of events per archive flush",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
		},
	)

	ArchiveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewguard_archive_errors_total",
			Help: "Total archive write errors",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewguard_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewguard_websocket_connections",
			Help: "Current number of open player relay connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewguard_websocket_messages_total",
			Help: "Total player relay messages",
		},
		[]string{"direction"}, // "inbound", "outbound"
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSave records one progress save attempt.
func RecordSave(reason string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SavesTotal.WithLabelValues(reason, outcome).Inc()
	SaveDuration.Observe(duration.Seconds())
}

// RecordEvent records one processed behavioral event.
func RecordEvent(category, name string) {
	EventsProcessed.WithLabelValues(category, name).Inc()
}
