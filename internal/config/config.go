// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreSQLite = "sqlite"
	SessionStoreRedis  = "redis"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ServerHost    string `env:"WEBGEN_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"WEBGEN_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"WEBGEN_ENV" envDefault:"development"`
	LogLevel      string `env:"WEBGEN_LOG_LEVEL" envDefault:"info"`
	SessionSecret string `env:"WEBGEN_SESSION_SECRET"`

	// TrustedOrigins are extra host:port origins allowed to post forms.
	TrustedOrigins []string `env:"WEBGEN_TRUSTED_ORIGINS"`

	// Storage locations. Empty file paths are derived from DataDir.
	DataDir   string `env:"WEBGEN_DATA_DIR" envDefault:"./data"`
	UsersFile string `env:"WEBGEN_USERS_FILE"`
	CMSFile   string `env:"WEBGEN_CMS_FILE"`
	SitesDir  string `env:"WEBGEN_SITES_DIR" envDefault:"./sites"`
	AuditLog  string `env:"WEBGEN_AUDIT_LOG"`

	// Session storage
	SessionStore  string `env:"WEBGEN_SESSION_STORE" envDefault:"memory"` // memory, sqlite or redis
	SessionDBPath string `env:"WEBGEN_SESSION_DB_PATH"`
	RedisURL      string `env:"WEBGEN_REDIS_URL"`

	LockTimeout       time.Duration `env:"WEBGEN_LOCK_TIMEOUT" envDefault:"5s"`
	RequestTimeout    time.Duration `env:"WEBGEN_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxUploadMB       int           `env:"WEBGEN_MAX_UPLOAD_MB" envDefault:"5"`
	LogoMaxHeight     int           `env:"WEBGEN_LOGO_MAX_HEIGHT" envDefault:"240"`
	ReconcileSchedule string        `env:"WEBGEN_RECONCILE_SCHEDULE" envDefault:"@every 1h"` // "off" disables
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ReconcileEnabled reports whether the ownership reconciler should run.
func (c Config) ReconcileEnabled() bool {
	return c.ReconcileSchedule != "" && c.ReconcileSchedule != "off"
}

// MaxUploadBytes returns the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.UsersFile = orJoin(cfg.UsersFile, cfg.DataDir, "user.json")
	cfg.CMSFile = orJoin(cfg.CMSFile, cfg.DataDir, "webgen.json")
	cfg.AuditLog = orJoin(cfg.AuditLog, cfg.DataDir, "audit.log")
	cfg.SessionDBPath = orJoin(cfg.SessionDBPath, cfg.DataDir, "sessions.db")

	switch cfg.SessionStore {
	case SessionStoreMemory, SessionStoreSQLite:
	case SessionStoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("WEBGEN_REDIS_URL is required when WEBGEN_SESSION_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("WEBGEN_SESSION_STORE must be memory, sqlite or redis, got %q", cfg.SessionStore)
	}

	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("WEBGEN_MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}

	if cfg.SessionSecret == "" && cfg.IsDevelopment() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		slog.Warn("WEBGEN_SESSION_SECRET not set; using a random secret, sessions will not survive restarts")
		return cfg, nil
	}

	// Validate session secret length
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("WEBGEN_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("WEBGEN_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("WEBGEN_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func orJoin(value, dir, name string) string {
	if value != "" {
		return value
	}
	return filepath.Join(dir, name)
}

func randomSecret() (string, error) {
	b := make([]byte, MinSessionSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
