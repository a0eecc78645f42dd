// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viewguard/viewguard/internal/auth"
)

// Router assembles the HTTP surface.
type Router struct {
	handler *Handler
	ws      *WSHandler
	authMW  *auth.Middleware
	mwCfg   MiddlewareConfig
}

// NewRouter creates the router from its handler set.
func NewRouter(handler *Handler, ws *WSHandler, authMW *auth.Middleware, mwCfg MiddlewareConfig) *Router {
	return &Router{handler: handler, ws: ws, authMW: authMW, mwCfg: mwCfg}
}

// Setup builds the chi route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(rt.mwCfg))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Get("/", rt.handler.Health)
		r.Get("/live", rt.handler.Health)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.With(RateLimitLogin(rt.mwCfg)).Post("/login", rt.handler.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(rt.mwCfg))
		r.Use(SecurityHeaders)
		r.Use(Instrument)
		r.Use(rt.authMW.Authenticate)

		r.Get("/courses", rt.handler.Courses)
		r.Get("/courses/{courseID}", rt.handler.Course)
		r.Get("/progress/{courseID}", rt.handler.Progress)
		r.Get("/engagement/summary", rt.handler.EngagementSummary)
		r.Get("/engagement/sessions", rt.handler.EngagementSessions)
		r.Get("/sessions", rt.handler.ActiveSessions)
		r.Get("/ws", rt.ws.Serve)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
