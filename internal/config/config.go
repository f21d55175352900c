// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for streamchat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file location:
//   - ~/.streamchat/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete streamchat configuration.
type Config struct {
	// General settings
	Version      string `toml:"version"`
	DefaultModel string `toml:"default_model"`

	// Provider configuration
	Provider ProviderConfig `toml:"provider"`

	// Stream buffer configuration
	Buffer BufferConfig `toml:"buffer"`

	// Render cache configuration
	Cache CacheConfig `toml:"cache"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ProviderConfig contains API provider configuration.
type ProviderConfig struct {
	// BaseURL is the provider API endpoint
	BaseURL string `toml:"base_url"`
	// APIKey is the provider API key
	APIKey string `toml:"api_key"`
	// TimeoutSecs is the timeout for non-streaming requests in seconds
	TimeoutSecs int `toml:"timeout_secs"`
}

// BufferConfig contains stream buffer configuration.
type BufferConfig struct {
	// CapacityRunes is the rune capacity of the streaming text buffer.
	// The oldest content is dropped once a response exceeds it.
	CapacityRunes int `toml:"capacity_runes"`
}

// CacheConfig contains render cache configuration.
type CacheConfig struct {
	// MaxEntries is the maximum number of rendered messages to retain
	MaxEntries int `toml:"max_entries"`
	// TTLSecs is the time-to-live for cache entries in seconds
	TTLSecs int `toml:"ttl_secs"`
	// SweepIntervalSecs is how often expired entries are removed, in seconds
	SweepIntervalSecs int `toml:"sweep_interval_secs"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// Dir is the directory holding the chat database (empty = config dir)
	Dir string `toml:"dir"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowStats displays token counts and timing after each response
	ShowStats bool `toml:"show_stats"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: "sc-standard",

		Provider: ProviderConfig{
			BaseURL:     "https://api.streamchat.dev/v1",
			APIKey:      "",
			TimeoutSecs: 60,
		},

		Buffer: BufferConfig{
			CapacityRunes: 16 * 1024,
		},

		Cache: CacheConfig{
			MaxEntries:        200,
			TTLSecs:           300,
			SweepIntervalSecs: 60,
		},

		Storage: StorageConfig{
			Dir: "",
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowStats:   true,
			CompactMode: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the streamchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".streamchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults
// when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = defaults.Provider.BaseURL
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = defaults.Provider.TimeoutSecs
	}

	if cfg.Buffer.CapacityRunes == 0 {
		cfg.Buffer.CapacityRunes = defaults.Buffer.CapacityRunes
	}

	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = defaults.Cache.MaxEntries
	}
	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = defaults.Cache.TTLSecs
	}
	if cfg.Cache.SweepIntervalSecs == 0 {
		cfg.Cache.SweepIntervalSecs = defaults.Cache.SweepIntervalSecs
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - STREAMCHAT_MODEL: overrides default_model
//   - STREAMCHAT_API_KEY: overrides provider.api_key
//   - STREAMCHAT_BASE_URL: overrides provider.base_url
//   - STREAMCHAT_THEME: overrides ui.theme
//   - STREAMCHAT_DATA_DIR: overrides storage.dir
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("STREAMCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if key := os.Getenv("STREAMCHAT_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if base := os.Getenv("STREAMCHAT_BASE_URL"); base != "" {
		c.Provider.BaseURL = base
	}
	if theme := os.Getenv("STREAMCHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if dir := os.Getenv("STREAMCHAT_DATA_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Provider.BaseURL != "" {
		if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "provider.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Provider.BaseURL),
			})
		}
	}

	if c.Provider.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "provider.timeout_secs",
			Message: "timeout cannot be negative",
		})
	}

	if c.Buffer.CapacityRunes < 0 {
		errs = append(errs, ValidationError{
			Field:   "buffer.capacity_runes",
			Message: "capacity cannot be negative",
		})
	}

	if c.Cache.MaxEntries < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.max_entries",
			Message: "max_entries cannot be negative",
		})
	}
	if c.Cache.TTLSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_secs",
			Message: "ttl cannot be negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
