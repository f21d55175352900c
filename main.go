// streamchat - a terminal client for streaming LLM chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/markdown"
	"github.com/jeranaias/streamchat/internal/pipeline"
	"github.com/jeranaias/streamchat/internal/provider"
	"github.com/jeranaias/streamchat/internal/render"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	modelFlag := flag.String("model", "", "override the default model")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamchat %s (%s)\n", Version, GitCommit)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamchat: %v\n", err)
		os.Exit(1)
	}
	if *modelFlag != "" {
		cfg.DefaultModel = *modelFlag
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "streamchat: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logFile, err := setupLogging()
	if err == nil {
		defer logFile.Close()
	}

	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir, err = config.ConfigDir()
		if err != nil {
			return err
		}
	}
	store, err := storage.NewSQLiteStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening chat database: %w", err)
	}
	defer store.Close()

	client := provider.NewClient(&provider.ClientConfig{
		BaseURL:      cfg.Provider.BaseURL,
		APIKey:       cfg.Provider.APIKey,
		Timeout:      time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
		DefaultModel: cfg.DefaultModel,
	})

	renderer, err := render.NewTerminalRenderer(100)
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	cache := render.NewCache(renderer, markdown.NewTokenizer(), render.Options{
		MaxEntries:    cfg.Cache.MaxEntries,
		TTL:           time.Duration(cfg.Cache.TTLSecs) * time.Second,
		SweepInterval: time.Duration(cfg.Cache.SweepIntervalSecs) * time.Second,
	})
	cache.Start()
	defer cache.Close()

	pipe := pipeline.New(store, client, cache, cfg.Buffer.CapacityRunes)
	coord := session.NewCoordinator(store, pipe)
	defer coord.Close()

	view := chat.New(coord, cache, cfg)
	program := tea.NewProgram(view, tea.WithAltScreen(), tea.WithMouseCellMotion())

	watcher := watchConfig(program)
	if watcher != nil {
		defer watcher.Close()
	}

	_, err = program.Run()
	return err
}

// watchConfig reloads the config file on change and forwards UI-safe
// settings into the running program. Best-effort.
func watchConfig(program *tea.Program) *config.Watcher {
	path, err := config.ConfigPath()
	if err != nil {
		return nil
	}
	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		program.Send(chat.ConfigReloadedMsg{Config: cfg})
	})
	if err != nil {
		log.Printf("config watch unavailable: %v", err)
		return nil
	}
	if err := watcher.Watch(); err != nil {
		log.Printf("config watch failed to start: %v", err)
		watcher.Close()
		return nil
	}
	return watcher
}

// setupLogging sends the standard logger to a file so log output does not
// corrupt the terminal UI.
func setupLogging() (*os.File, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(dir+"/streamchat.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f, nil
}
