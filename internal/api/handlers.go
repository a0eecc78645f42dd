// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/viewguard/viewguard/internal/archive"
	"github.com/viewguard/viewguard/internal/auth"
	"github.com/viewguard/viewguard/internal/authz"
	"github.com/viewguard/viewguard/internal/course"
	"github.com/viewguard/viewguard/internal/logging"
	"github.com/viewguard/viewguard/internal/models"
	"github.com/viewguard/viewguard/internal/session"
	"github.com/viewguard/viewguard/internal/store"
)

// EngagementReporter reads aggregated behavioral data. Implemented by
// the DuckDB archive; nil when the archive is disabled.
type EngagementReporter interface {
	Summary(ctx context.Context, userID string) (*archive.EngagementSummary, error)
	TopSessions(ctx context.Context, userID string, limit int) ([]archive.SessionActivity, error)
}

// Handler bundles the dependencies behind the HTTP endpoints.
type Handler struct {
	catalog  *course.Catalog
	store    store.ProgressStore
	manager  *session.Manager
	jwt      *auth.JWTManager
	verifier *auth.AdminVerifier
	enforcer *authz.Enforcer
	reporter EngagementReporter
}

// HandlerConfig wires a Handler. Verifier and Reporter may be nil; the
// corresponding endpoints then report unavailable.
type HandlerConfig struct {
	Catalog  *course.Catalog
	Store    store.ProgressStore
	Manager  *session.Manager
	JWT      *auth.JWTManager
	Verifier *auth.AdminVerifier
	Enforcer *authz.Enforcer
	Reporter EngagementReporter
}

// NewHandler creates the endpoint handler set.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		catalog:  cfg.Catalog,
		store:    cfg.Store,
		manager:  cfg.Manager,
		jwt:      cfg.JWT,
		verifier: cfg.Verifier,
		enforcer: cfg.Enforcer,
		reporter: cfg.Reporter,
	}
}

type loginResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login authenticates the administrator and issues a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "admin login is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}

	if err := h.verifier.Verify(req.Username, req.Password); err != nil {
		logging.Warn().Str("username", req.Username).Msg("failed admin login")
		WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid username or password")
		return
	}

	token, err := h.jwt.GenerateToken(req.Username, authz.RoleAdmin)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "token generation failed")
		return
	}

	claims, _ := h.jwt.ValidateToken(token)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  claims.ExpiresAt.Time,
	})
	WriteSuccess(w, http.StatusOK, loginResponse{
		Token:     token,
		Role:      authz.RoleAdmin,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// Courses returns the catalog entries visible to the caller: released
// courses whose audience list is empty or contains the caller.
func (h *Handler) Courses(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	isAdmin := claims.Role == authz.RoleAdmin
	WriteSuccess(w, http.StatusOK, h.catalog.ViewableCourses(claims.EmployeeID, isAdmin, time.Now()))
}

// Course returns one catalog entry.
func (h *Handler) Course(w http.ResponseWriter, r *http.Request) {
	c := h.catalog.Get(chi.URLParam(r, "courseID"))
	if c == nil {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "course not found")
		return
	}
	WriteSuccess(w, http.StatusOK, c)
}

type progressResponse struct {
	Document *models.ProgressDocument `json:"document"`
	Progress models.CourseProgress    `json:"progress"`
}

// Progress returns the caller's saved progress for one course, plus
// the aggregated completion percentage.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	courseID := chi.URLParam(r, "courseID")

	doc, err := h.store.Load(r.Context(), claims.EmployeeID, courseID)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "no progress recorded for this course")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("course_id", courseID).Msg("progress load failed")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "progress load failed")
		return
	}

	WriteSuccess(w, http.StatusOK, progressResponse{
		Document: doc,
		Progress: course.Aggregate(doc.Units),
	})
}

// EngagementSummary returns aggregate behavioral statistics for a
// learner. Requires the engagement read permission (reviewer or
// admin).
func (h *Handler) EngagementSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireEngagementRead(w, r)
	if !ok {
		return
	}
	if h.reporter == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event archive is disabled")
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = claims.EmployeeID
	}

	summary, err := h.reporter.Summary(r.Context(), userID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("engagement summary failed")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "engagement summary failed")
		return
	}
	WriteSuccess(w, http.StatusOK, summary)
}

// EngagementSessions returns the most active sessions for a learner.
func (h *Handler) EngagementSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireEngagementRead(w, r)
	if !ok {
		return
	}
	if h.reporter == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event archive is disabled")
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = claims.EmployeeID
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}
	if err := validate.Struct(&sessionsQuery{Limit: limit}); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 100")
		return
	}

	sessions, err := h.reporter.TopSessions(r.Context(), userID, limit)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("engagement sessions failed")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "engagement sessions failed")
		return
	}
	WriteSuccess(w, http.StatusOK, sessions)
}

// ActiveSessions reports how many unit sessions are live. Admin only.
func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	allowed, err := h.enforcer.EnforceWithRoles(claims.EmployeeID, rolesOf(claims), authz.ObjectSession, authz.ActionAdmin)
	if err != nil || !allowed {
		WriteError(w, http.StatusForbidden, ErrCodeForbidden, "admin access required")
		return
	}
	WriteSuccess(w, http.StatusOK, map[string]int{"activeSessions": h.manager.ActiveCount()})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the progress store must answer.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// A probe read against a key that cannot exist. ErrNotFound proves
	// the store is answering.
	_, err := h.store.Load(ctx, "_readyz", "_readyz")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "progress store unavailable")
		return
	}
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) requireEngagementRead(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := auth.ClaimsFromContext(r.Context())
	allowed, err := h.enforcer.EnforceWithRoles(claims.EmployeeID, rolesOf(claims), authz.ObjectEngagement, authz.ActionRead)
	if err != nil {
		logging.Error().Err(err).Msg("authorization check failed")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "authorization check failed")
		return nil, false
	}
	if !allowed {
		WriteError(w, http.StatusForbidden, ErrCodeForbidden, "engagement data requires reviewer access")
		return nil, false
	}
	return claims, true
}

func rolesOf(claims *auth.Claims) []string {
	if claims.Role == "" {
		return nil
	}
	return []string{claims.Role}
}
