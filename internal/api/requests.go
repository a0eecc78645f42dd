// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package api

import "github.com/go-playground/validator/v10"

// Inbound payloads are validated with go-playground/validator tags,
// the same vocabulary the config layer uses.
var validate = validator.New()

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required"`
}

// sessionsQuery bounds the ?limit parameter of the engagement
// sessions endpoint.
type sessionsQuery struct {
	Limit int `validate:"min=1,max=100"`
}
