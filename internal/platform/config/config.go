// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, storage) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Folio API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis). Optional: when empty, book locks are held in-process.
	RedisURL string `env:"REDIS_URL"`

	// Public key used to verify access tokens issued by the identity service
	JWTPubKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Artifact storage (local filesystem)
	StorageRoot         string `env:"STORAGE_ROOT"          envDefault:"./uploads"`
	StoragePublicPrefix string `env:"STORAGE_PUBLIC_PREFIX" envDefault:"/uploads"`

	// WatermarkImagePath is the PNG embedded into every watermarked archive.
	WatermarkImagePath string `env:"WATERMARK_IMAGE_PATH" envDefault:"./assets/watermark.png"`

	// Book limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	BookMaxPages   int   `env:"BOOK_MAX_PAGES"   envDefault:"1000"`

	// Per-book lock tuning
	BookLockTTL  time.Duration `env:"BOOK_LOCK_TTL"  envDefault:"2m"`
	BookLockWait time.Duration `env:"BOOK_LOCK_WAIT" envDefault:"30s"`

	// Cross-Origin Resource Sharing
	ExtraOrigins        []string `env:"EXTRA_ORIGINS" envSeparator:","`
	AllowedOriginSuffix string   `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"folio.app"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("config: MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}

	if strings.Trim(cfg.StoragePublicPrefix, "/") == "" {
		return nil, fmt.Errorf("config: STORAGE_PUBLIC_PREFIX must name a path below the root, got %q", cfg.StoragePublicPrefix)
	}

	if cfg.BookMaxPages <= 0 {
		return nil, fmt.Errorf("config: BOOK_MAX_PAGES must be positive, got %d", cfg.BookMaxPages)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowsOrigin reports whether a browser origin may call the API in non-development mode.
func (c *Config) AllowsOrigin(origin string) bool {
	if c.AllowedOriginSuffix != "" && strings.HasSuffix(origin, c.AllowedOriginSuffix) {
		return true
	}

	for _, extra := range c.ExtraOrigins {
		if strings.TrimSpace(extra) == origin {
			return true
		}
	}

	return false
}
