package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"pivision/internal/config"
	"pivision/internal/services/camera"
	"pivision/internal/services/collection"
	"pivision/internal/services/inference"
	"pivision/internal/services/messaging"
)

// Container holds all services
type Container struct {
	Config    *config.Config
	Camera    *camera.Service
	Inference *inference.Client
	Messaging *messaging.Service // nil when NATS is disabled or unreachable
	Scheduler *collection.Scheduler
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config) (*Container, error) {
	cameraSvc := camera.NewService(cfg)
	inferenceClient := inference.NewClient(cfg)

	// NATS is optional: the station stays fully functional without a broker.
	var messagingSvc *messaging.Service
	if cfg.NatsEnabled {
		svc, err := messaging.NewService(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, continuing without event publishing")
		} else {
			messagingSvc = svc
		}
	}

	var events collection.EventPublisher
	if messagingSvc != nil {
		events = messagingSvc
	}

	scheduler, err := collection.New(cameraSvc, collection.Options{
		DataDir:      cfg.DataDir,
		TickInterval: cfg.CollectionTickInterval,
		Events:       events,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:    cfg,
		Camera:    cameraSvc,
		Inference: inferenceClient,
		Messaging: messagingSvc,
		Scheduler: scheduler,
	}, nil
}

// Shutdown gracefully shuts down all services
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Scheduler != nil {
		if err := c.Scheduler.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
	}

	if c.Messaging != nil {
		if err := c.Messaging.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("NATS shutdown error")
		}
	}

	return nil
}
