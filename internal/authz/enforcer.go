// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package authz provides role-based authorization using Casbin. Three
// roles exist: user, reviewer, admin. Reviewers inherit user and gain
// the guard-bypass capability; admins inherit reviewer.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Role names recognized by the default policy.
const (
	RoleUser     = "user"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// Logical resources and actions used by the default policy.
const (
	ObjectCourses      = "courses"
	ObjectProgress     = "progress"
	ObjectSession      = "session"
	ObjectInteractions = "interactions"
	ObjectGuard        = "guard"
	ObjectEngagement   = "engagement"

	ActionRead   = "read"
	ActionWrite  = "write"
	ActionBypass = "bypass"
	ActionAdmin  = "admin"
)

// Config holds enforcer settings. Empty paths mean the embedded model
// and policy are used.
type Config struct {
	ModelPath  string
	PolicyPath string

	// DefaultRole is assumed for subjects carrying no roles.
	DefaultRole string
}

// DefaultConfig returns the embedded-policy configuration.
func DefaultConfig() Config {
	return Config{DefaultRole: RoleUser}
}

// Enforcer answers authorization questions for the API layer and the
// session manager.
type Enforcer struct {
	cfg      Config
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the enforcer from file paths or the embedded
// model and policy.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = RoleUser
	}

	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	return &Enforcer{cfg: cfg, enforcer: enforcer}, nil
}

func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch parts[0] {
		case "p":
			if len(parts) >= 4 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if len(parts) >= 3 {
				if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("add grouping %v: %w", parts[1:], err)
				}
			}
		}
	}
	return nil
}

// Enforce checks whether the subject may perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforce: %w", err)
	}
	return allowed, nil
}

// EnforceWithRoles checks the subject and each of its roles, falling
// back to the default role for subjects without any.
func (e *Enforcer) EnforceWithRoles(subject string, roles []string, object, action string) (bool, error) {
	if allowed, err := e.Enforce(subject, object, action); err != nil || allowed {
		return allowed, err
	}
	for _, role := range roles {
		if allowed, err := e.Enforce(role, object, action); err != nil || allowed {
			return allowed, err
		}
	}
	if len(roles) == 0 {
		return e.Enforce(e.cfg.DefaultRole, object, action)
	}
	return false, nil
}

// CanBypassGuard reports whether any of the subject's roles carries the
// anti-skip guard bypass capability.
func (e *Enforcer) CanBypassGuard(subject string, roles []string) bool {
	allowed, err := e.EnforceWithRoles(subject, roles, ObjectGuard, ActionBypass)
	if err != nil {
		return false
	}
	return allowed
}

// AddRoleForUser assigns a role to a subject at runtime.
func (e *Enforcer) AddRoleForUser(user, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("add role: %w", err)
	}
	return added, nil
}

// GetRolesForUser returns the subject's explicit roles.
func (e *Enforcer) GetRolesForUser(user string) ([]string, error) {
	return e.enforcer.GetRolesForUser(user)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
