// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8087 {
		t.Errorf("port = %d, want 8087", cfg.Server.Port)
	}
	if cfg.Session.AutosaveInterval != 10*time.Second {
		t.Errorf("autosave interval = %v", cfg.Session.AutosaveInterval)
	}
	if cfg.Session.MetricsInterval != time.Second {
		t.Errorf("metrics interval = %v", cfg.Session.MetricsInterval)
	}
	if cfg.Session.GuardBufferSeconds != 2.0 {
		t.Errorf("guard buffer = %v", cfg.Session.GuardBufferSeconds)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if !cfg.Archive.Enabled {
		t.Error("archive should default on")
	}
	if cfg.NATS.Enabled {
		t.Error("nats should default off")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUTOSAVE_INTERVAL", "30s")
	t.Setenv("CORS_ORIGINS", "https://lms.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Session.AutosaveInterval != 30*time.Second {
		t.Errorf("autosave = %v", cfg.Session.AutosaveInterval)
	}
	want := []string{"https://lms.example.com", "https://admin.example.com"}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != want[0] || cfg.Security.CORSOrigins[1] != want[1] {
		t.Errorf("cors = %v", cfg.Security.CORSOrigins)
	}
}

func TestConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  port: 8443\nlogging:\n  level: warn\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("port = %d, want 8443", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	// Unset sections keep their defaults.
	if cfg.Session.GuardBufferSeconds != 2.0 {
		t.Errorf("guard buffer = %v", cfg.Session.GuardBufferSeconds)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8443\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, env must beat file", cfg.Server.Port)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown log level")
	}
}

func TestAdminUsernameRequiresHash(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "admin")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for admin username without password hash")
	}
}

func TestUnmappedEnvIgnored(t *testing.T) {
	t.Setenv("RANDOM_UNRELATED_VAR", "whatever")
	if _, err := Load(); err != nil {
		t.Fatalf("unmapped env must be ignored, got %v", err)
	}
}
