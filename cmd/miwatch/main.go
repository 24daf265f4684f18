package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/miwatch/miwatch/pkg/api"
	"github.com/miwatch/miwatch/pkg/config"
	"github.com/miwatch/miwatch/pkg/db"
	"github.com/miwatch/miwatch/pkg/mijia"
	"github.com/miwatch/miwatch/pkg/monitor"
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml)")
	dbPath := flag.String("db", "", "Path to database file (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel()); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database
	path := cfg.DatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	database, err := db.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// This build carries no cloud transport, so the binary always runs
	// in limited mode: stored data stays queryable, monitoring cannot
	// start. The auth file is only inspected to tell the two causes
	// apart in the log.
	var client mijia.Client = mijia.NewNullClient()
	if _, err := os.Stat(cfg.AuthFile()); err == nil {
		log.Warn().Str("auth_file", cfg.AuthFile()).
			Msg("Saved session found but this build has no cloud transport, running in limited mode")
	} else {
		log.Warn().Str("auth_file", cfg.AuthFile()).
			Msg("No cloud session found, running in limited mode")
	}

	mon := monitor.New(cfg, database, client, log.Logger)

	// Wire notifications onto the event bus
	notifier := monitor.NewNotifier(cfg, database.Logs(), log.Logger)
	notifier.Register(mon.Bus())

	// Background history cleanup
	retention := monitor.NewRetentionJob(cfg, database, log.Logger)
	go retention.Run(ctx)

	if client.Available() {
		if err := mon.FetchDevices(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to fetch devices")
		}
		if cfg.AutoStart() {
			if err := mon.Start(); err != nil {
				log.Error().Err(err).Msg("Failed to auto-start monitoring")
			}
		}
	}

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		cancel()
		mon.Stop()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	if !cfg.APIEnabled() {
		log.Info().Msg("API disabled, waiting for signals")
		select {}
	}

	// Start server
	addr := cfg.APIAddr()
	log.Info().Str("address", addr).Msg("Starting API server")

	router := api.NewRouter(database, client, mon, log.Logger)
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
