// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

// Package config loads layered configuration: built-in defaults, then
// an optional YAML file, then environment variables. ENV > file >
// defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/viewguard/config.yaml",
	"/etc/viewguard/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Archive  ArchiveConfig  `koanf:"archive"`
	NATS     NATSConfig     `koanf:"nats"`
	Security SecurityConfig `koanf:"security"`
	Session  SessionConfig  `koanf:"session"`
	Courses  CoursesConfig  `koanf:"courses"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig holds the progress store settings.
type StorageConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ArchiveConfig holds the behavioral event archive settings.
type ArchiveConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	BatchSize     int           `koanf:"batch_size" validate:"min=1"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// NATSConfig holds the optional JetStream event forwarder settings.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	StreamName     string `koanf:"stream_name"`
}

// SecurityConfig holds authentication and transport hardening settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername and AdminPasswordHash gate the admin login. The
	// hash is bcrypt; plaintext passwords are never configured.
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`

	CasbinModelPath  string `koanf:"casbin_model_path"`
	CasbinPolicyPath string `koanf:"casbin_policy_path"`
}

// SessionConfig tunes the per-unit session machinery.
type SessionConfig struct {
	AutosaveInterval time.Duration `koanf:"autosave_interval" validate:"min=1s"`
	MetricsInterval  time.Duration `koanf:"metrics_interval" validate:"min=100ms"`

	// GuardBufferSeconds is the forward slack the anti-skip guard
	// permits past the watched watermark.
	GuardBufferSeconds float64 `koanf:"guard_buffer_seconds" validate:"min=0"`
}

// CoursesConfig locates the course catalog.
type CoursesConfig struct {
	CatalogPath string `koanf:"catalog_path" validate:"required"`
}

// LoggingConfig mirrors the logging package's settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8087,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path: "/data/progress",
		},
		Archive: ArchiveConfig{
			Enabled:       true,
			Path:          "/data/viewguard.duckdb",
			BatchSize:     500,
			FlushInterval: 5 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			StreamName:     "BEHAVIORAL_EVENTS",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Session: SessionConfig{
			AutosaveInterval:   10 * time.Second,
			MetricsInterval:    time.Second,
			GuardBufferSeconds: 2.0,
		},
		Courses: CoursesConfig{
			CatalogPath: "/data/courses.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// Validate checks structural constraints via validator tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Security.AdminUsername != "" && c.Security.AdminPasswordHash == "" {
		return fmt.Errorf("security: admin_username set without admin_password_hash")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed from comma-separated env
// strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped so unrelated environment state cannot
// pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		"progress_store_path": "storage.path",

		"archive_enabled":        "archive.enabled",
		"duckdb_path":            "archive.path",
		"archive_batch_size":     "archive.batch_size",
		"archive_flush_interval": "archive.flush_interval",

		"nats_enabled":     "nats.enabled",
		"nats_url":         "nats.url",
		"nats_embedded":    "nats.embedded_server",
		"nats_store_dir":   "nats.store_dir",
		"nats_stream_name": "nats.stream_name",

		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"admin_username":      "security.admin_username",
		"admin_password_hash": "security.admin_password_hash",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"casbin_model_path":   "security.casbin_model_path",
		"casbin_policy_path":  "security.casbin_policy_path",

		"autosave_interval":    "session.autosave_interval",
		"metrics_interval":     "session.metrics_interval",
		"guard_buffer_seconds": "session.guard_buffer_seconds",

		"course_catalog_path": "courses.catalog_path",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
