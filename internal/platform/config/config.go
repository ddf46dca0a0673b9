// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

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
  - DI-Friendly: Passed to core components (stores, clients) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the BASMS session gateway.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// BackendBaseURL is the BASMS REST API consumed by the main backoffice scope.
	BackendBaseURL string `env:"BACKEND_BASE_URL,required"`

	// EContractBaseURL is the e-contract signing API. Defaults to the main
	// backend when the deployment serves both surfaces from one host.
	EContractBaseURL string `env:"ECONTRACT_BASE_URL"`

	// DeniedRoleIDs is a comma-separated list of role IDs that may never log in
	// through the admin surface, even with valid credentials.
	DeniedRoleIDs string `env:"DENIED_ROLE_IDS"`

	// CredentialsBackend selects where sessions persist: "file", "redis", or "memory".
	CredentialsBackend string `env:"CREDENTIALS_BACKEND" envDefault:"file"`

	// CredentialsFilePath is the on-disk location for the file backend.
	CredentialsFilePath string `env:"CREDENTIALS_FILE_PATH" envDefault:"./data/credentials.enc"`

	// SessionSecret keys the at-rest encryption of the file credential store.
	SessionSecret string `env:"SESSION_SECRET,required"`

	// Key-Value Store (Redis); required only when CredentialsBackend is "redis".
	RedisURL string `env:"REDIS_URL"`

	// Relational Database (PostgreSQL); enables the session audit trail when set.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.EContractBaseURL == "" {
		cfg.EContractBaseURL = cfg.BackendBaseURL
	}

	if cfg.CredentialsBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("config: CREDENTIALS_BACKEND=redis requires REDIS_URL")
	}

	return cfg, nil
}

// DeniedRoles splits DeniedRoleIDs into a trimmed, empty-free slice.
func (c *Config) DeniedRoles() []string {
	if strings.TrimSpace(c.DeniedRoleIDs) == "" {
		return nil
	}

	parts := strings.Split(c.DeniedRoleIDs, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return roles
}

// AuditEnabled reports whether the PostgreSQL audit trail should be wired.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

// IsDevelopment reports whether the gateway is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the gateway is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
