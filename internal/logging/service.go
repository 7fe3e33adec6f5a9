package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pivision/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("station_id", cfg.StationID).Str("service", service).Logger()
}

func WithFolder(base zerolog.Logger, folder string) zerolog.Logger {
	return base.With().Str("folder", folder).Logger()
}
