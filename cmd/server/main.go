package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pivision/internal/api"
	"pivision/internal/config"
	"pivision/internal/logging"
	"pivision/internal/services"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339

	// Load configuration
	cfg := config.Load()

	// Recent log lines are kept in memory for the /api/logs endpoint.
	logBuffer := logging.NewBuffer(500)
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr},
		zerolog.ConsoleWriter{Out: logBuffer, NoColor: true},
	}

	if fileWriter, err := logging.NewFileWriter(cfg.LogsDir); err != nil {
		log.Warn().Err(err).Str("dir", cfg.LogsDir).Msg("File logging disabled")
	} else {
		writers = append(writers, fileWriter)
		defer fileWriter.Close()
	}

	if cfg.LogdyEnabled {
		if logdyWriter, _, err := logging.StartLogdy(cfg); err != nil {
			log.Warn().Err(err).Msg("Logdy UI disabled")
		} else {
			writers = append(writers, logdyWriter)
		}
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("station_id", cfg.StationID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("prediction_service", cfg.PredictionServiceURL).
		Msg("Starting PiVision station")

	// Build services
	container, err := services.NewContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	// Create and start server
	server, err := api.NewServer(cfg, container, logBuffer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Service shutdown error")
	} else {
		log.Info().Msg("Shutdown complete")
	}
}
