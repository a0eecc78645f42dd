// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package api exposes the HTTP and WebSocket surface: admin login,
// course catalog, saved progress, engagement reporting, and the
// playback event ingest socket.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/viewguard/viewguard/internal/logging"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("encode response failed")
	}
}
