// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.DefaultModel == "" {
		t.Error("default model is empty")
	}
	if cfg.Buffer.CapacityRunes <= 0 {
		t.Error("buffer capacity not positive")
	}
}

func TestLoadTOMLFillsMissingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
default_model = "sc-large"

[provider]
api_key = "sk-test"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		t.Fatalf("LoadTOML: %v", err)
	}

	if cfg.DefaultModel != "sc-large" {
		t.Errorf("default_model = %q", cfg.DefaultModel)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("api_key = %q", cfg.Provider.APIKey)
	}
	// Unset fields keep defaults.
	if cfg.Provider.BaseURL != Default().Provider.BaseURL {
		t.Errorf("base_url = %q, want default", cfg.Provider.BaseURL)
	}
	if cfg.Cache.MaxEntries != Default().Cache.MaxEntries {
		t.Errorf("max_entries = %d, want default", cfg.Cache.MaxEntries)
	}
}

func TestLoadTOMLFixesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`default_model = "x"`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadTOML(Default(), path); err != nil {
		t.Fatalf("LoadTOML: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("STREAMCHAT_MODEL", "sc-mini")
	t.Setenv("STREAMCHAT_API_KEY", "sk-env")
	t.Setenv("STREAMCHAT_THEME", "light")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.DefaultModel != "sc-mini" {
		t.Errorf("default_model = %q", cfg.DefaultModel)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("api_key = %q", cfg.Provider.APIKey)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("theme = %q", cfg.UI.Theme)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url", func(c *Config) { c.Provider.BaseURL = "not a url" }, "provider.base_url"},
		{"negative timeout", func(c *Config) { c.Provider.TimeoutSecs = -1 }, "provider.timeout_secs"},
		{"negative capacity", func(c *Config) { c.Buffer.CapacityRunes = -5 }, "buffer.capacity_runes"},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted bad config")
			}
			var errs ValidateErrors
			if !errors.As(err, &errs) {
				t.Fatalf("error type %T", err)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, errs)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.DefaultModel = "sc-large"
	cfg.UI.CompactMode = true
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("saved permissions = %o, want 0600", perm)
	}

	loaded := Default()
	if err := LoadTOML(loaded, path); err != nil {
		t.Fatalf("LoadTOML: %v", err)
	}
	if loaded.DefaultModel != "sc-large" {
		t.Errorf("default_model = %q", loaded.DefaultModel)
	}
	if !loaded.UI.CompactMode {
		t.Error("compact_mode lost in round trip")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`default_model = "sc-standard"`), 0600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte(`default_model = "sc-large"`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.DefaultModel != "sc-large" {
			t.Errorf("reloaded model = %q, want sc-large", cfg.DefaultModel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change never delivered")
	}
}

func TestWatcherKeepsPreviousOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`default_model = "sc-standard"`), 0600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte(`[ui]
theme = "solarized"`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config was delivered: %+v", cfg)
	case <-time.After(time.Second):
	}
}
