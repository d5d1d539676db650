// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the server configuration from a YAML file with
// environment variable overrides (prefix PASSKEY_, dots become
// underscores: PASSKEY_SERVER_PORT overrides server.port).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Config represents the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	WebAuthn  passkey.Config  `yaml:"webauthn" mapstructure:"webauthn"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Tokens    TokenConfig     `yaml:"tokens" mapstructure:"tokens"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	TLS       TLSConfig       `yaml:"tls" mapstructure:"tls"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
}

// ServerConfig contains server-level settings.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// SessionConfig controls session issuance.
type SessionConfig struct {
	// TTL is the session lifetime. Sessions renew on use past half their
	// lifetime.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`

	// CleanupInterval is how often the janitor evicts expired sessions and
	// ceremonies.
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// TokenConfig controls bearer API tokens.
type TokenConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Issuer    string        `yaml:"issuer" mapstructure:"issuer"`
	Audience  string        `yaml:"audience" mapstructure:"audience"`
	ExpiresIn time.Duration `yaml:"expires_in" mapstructure:"expires_in"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TLSConfig controls TLS settings.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile   string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile    string `yaml:"key_file" mapstructure:"key_file"`
	MinVersion string `yaml:"min_version" mapstructure:"min_version"`
}

// RateLimitConfig throttles the ceremony begin endpoints.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path is the SQLite database file. Required for the sqlite backend.
	Path string `yaml:"path" mapstructure:"path"`
}

// setDefaults registers defaults on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cleanup_interval", 5*time.Minute)
	v.SetDefault("webauthn.id", "localhost")
	v.SetDefault("webauthn.display_name", "Go Passkey")
	v.SetDefault("webauthn.origins", []string{"http://localhost:8080"})
	v.SetDefault("tokens.enabled", true)
	v.SetDefault("tokens.issuer", "go-passkey")
	v.SetDefault("tokens.audience", "go-passkey")
	v.SetDefault("tokens.expires_in", time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_min", 30)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "passkey.db")
}

// Load reads configuration from the given YAML file and applies environment
// variable overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PASSKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.WebAuthn.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.WebAuthn.Validate(); err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be sqlite or memory)", c.Storage.Backend)
	}

	return nil
}
