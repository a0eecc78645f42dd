// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// claimsContextKey stores the authenticated Claims on the request
// context.
const claimsContextKey contextKey = "claims"

// TokenCookieName is the cookie the browser client stores its token in.
const TokenCookieName = "viewguard_token"

// Middleware enforces token authentication on HTTP handlers.
type Middleware struct {
	jwt *JWTManager
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(jwt *JWTManager) *Middleware {
	return &Middleware{jwt: jwt}
}

// Authenticate rejects requests without a valid token and stores the
// claims on the request context for downstream handlers.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractToken(r)
		if err != nil {
			unauthorized(w)
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// ExtractToken pulls the token from the Authorization header, falling
// back to the session cookie for browser clients.
func ExtractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", ErrInvalidToken
		}
		return parts[1], nil
	}

	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrInvalidToken
	}
	return cookie.Value, nil
}

// ContextWithClaims stores claims on a context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated claims, or nil if the
// request did not pass through Authenticate.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"authentication required"}}`))
}
