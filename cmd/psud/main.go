package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/psud/internal/config"
	"codeberg.org/mutker/psud/internal/daemon"
	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/logger"
	"codeberg.org/mutker/psud/internal/pid"
	"codeberg.org/mutker/psud/internal/statedb"
)

// Exit statuses. No usable hardware capability source is the one fatal
// condition worth telling apart from ordinary startup failures.
const (
	exitFailure    = 1
	exitNoPlatform = 2
	exitStateStore = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)

		return exitFailure
	}

	debug := cfg.Debug || cfg.LogLevel == "debug"
	verbose := cfg.Verbose || cfg.LogLevel == "info"
	logger.Init(debug, verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Error().Err(err).Msg("Failed to write PID file")

		return exitFailure
	}
	defer pid.Remove()

	chassis, err := hwapi.New(cfg.Platform)
	if err != nil {
		logger.Error().Err(err).Msg("No usable hardware capability source")

		return exitNoPlatform
	}

	db, err := statedb.Open(cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open state store")

		return exitStateStore
	}
	defer db.Close()

	d, err := daemon.New(cfg.Interval, chassis, db)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize daemon")

		return exitFailure
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := d.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")

		return exitFailure
	}

	logger.Info().Msg("Exiting...")

	return 0
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
