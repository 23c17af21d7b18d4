// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the FlowPulse daemon. The daemon
// records usage events, runs the periodic adaptation pipeline, and serves the
// read-only status API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/api"
	"github.com/flowpulse/flowpulse/internal/buildinfo"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/engine"
	"github.com/flowpulse/flowpulse/internal/logging"
	"github.com/flowpulse/flowpulse/internal/notify"
	"github.com/flowpulse/flowpulse/internal/settings"
	"github.com/flowpulse/flowpulse/internal/storage"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("flowpulse %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	if wd, err := os.Getwd(); err == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !os.IsNotExist(errLoad) {
			log.WithError(errLoad).Debug("No .env file loaded")
		}
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err = logging.ConfigureLogOutput(cfg.LogDir, cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("FlowPulse terminated: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	provider, err := settings.NewProvider(cfg.SettingsFile)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}

	eng := engine.New(cfg, store, provider, telemetry.ClockContextSource{}, notify.LogNotifier{})
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API, eng, cfg.Debug)
		if err := server.Start(); err != nil {
			shutdownEngine(eng)
			return err
		}
	}

	log.Infof("FlowPulse %s running", buildinfo.Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("Received %s, shutting down", sig)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Status API shutdown failed")
		}
		shutdownCancel()
	}
	shutdownEngine(eng)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.Storage.DSN)
	default:
		return storage.NewSQLiteStore(ctx, cfg.Storage.Path)
	}
}

func shutdownEngine(eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Engine shutdown failed")
	}
}
