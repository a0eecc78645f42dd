// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/viewguard/viewguard/internal/metrics"
)

// MiddlewareConfig holds the settings for the shared middleware stack.
type MiddlewareConfig struct {
	CORSOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultMiddlewareConfig returns conservative defaults. CORS origins
// are empty so cross-origin access requires explicit configuration.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSOrigins:       []string{},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// CORS builds the cross-origin middleware from go-chi/cors.
func CORS(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// RateLimit builds a per-IP request limiter from go-chi/httprate.
func RateLimit(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return passthrough
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded")
		}),
	)
}

// RateLimitLogin is a stricter limiter for the login endpoint: 5
// attempts per 5 minutes per IP.
func RateLimitLogin(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return passthrough
	}
	return httprate.Limit(
		5,
		5*time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many login attempts")
		}),
	)
}

func passthrough(next http.Handler) http.Handler { return next }

// SecurityHeaders sets the standard hardening headers on API
// responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Instrument records request count and latency per route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Label by route pattern, not raw path, to bound cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		metrics.RecordAPIRequest(r.Method, path, ww.Status(), time.Since(start))
	})
}
