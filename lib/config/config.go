// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Lumen CLI
// tools.
//
// Configuration is loaded from a single YAML file specified by:
//   - the LUMEN_CONFIG environment variable, or
//   - the --config flag passed to the command.
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
// Individual flags override file values; the merge happens in the
// commands, not here.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable naming the config file path.
const EnvVar = "LUMEN_CONFIG"

// Config is the configuration for the Lumen CLI tools.
type Config struct {
	// Homeserver is the base URL of the Matrix homeserver
	// (e.g., "https://matrix.example.org").
	Homeserver string `yaml:"homeserver"`

	// UserID is the fully-qualified Matrix user ID of the account
	// (e.g., "@alice:example.org").
	UserID string `yaml:"user_id"`

	// AccessTokenFile is the path to a file holding the access token.
	// The token itself never appears in the config file.
	AccessTokenFile string `yaml:"access_token_file"`

	// SyncTimeoutMS is the server-side long-poll hold time for /sync,
	// in milliseconds. Zero uses the built-in default (30000).
	SyncTimeoutMS int `yaml:"sync_timeout_ms"`

	// Filter is an inline JSON /sync filter, passed verbatim to the
	// homeserver. Empty means no filter.
	Filter string `yaml:"filter"`

	// JournalDir is the directory where sync batches are recorded for
	// later replay. Empty disables journaling.
	JournalDir string `yaml:"journal_dir"`
}

// Path resolves the config file path from the flag value and the
// environment. The flag wins when both are set. Returns an error when
// neither is set.
func Path(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("config: no config file specified (set %s or pass --config)", EnvVar)
}

// Load reads and validates the config file at path. Unknown YAML keys
// are rejected so that typos fail loudly instead of being ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.Homeserver == "" {
		return fmt.Errorf("homeserver is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.AccessTokenFile == "" {
		return fmt.Errorf("access_token_file is required")
	}
	if c.SyncTimeoutMS < 0 {
		return fmt.Errorf("sync_timeout_ms must not be negative (got %d)", c.SyncTimeoutMS)
	}
	return nil
}

// ReadAccessToken reads the access token from the configured file,
// trimming a single trailing newline if present.
func (c *Config) ReadAccessToken() (string, error) {
	data, err := os.ReadFile(c.AccessTokenFile)
	if err != nil {
		return "", fmt.Errorf("config: reading access token from %s: %w", c.AccessTokenFile, err)
	}
	token := string(data)
	for len(token) > 0 && (token[len(token)-1] == '\n' || token[len(token)-1] == '\r') {
		token = token[:len(token)-1]
	}
	if token == "" {
		return "", fmt.Errorf("config: access token file %s is empty", c.AccessTokenFile)
	}
	return token, nil
}
