package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pivision/internal/api/handlers"
	"pivision/internal/api/middleware"
	"pivision/internal/config"
	"pivision/internal/logging"
	"pivision/internal/services"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler     *handlers.HealthHandler
	systemHandler     *handlers.SystemHandler
	cameraHandler     *handlers.CameraHandler
	collectionHandler *handlers.CollectionHandler
}

func NewServer(cfg *config.Config, container *services.Container, logs *logging.Buffer) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	s := &Server{
		config:            cfg,
		router:            router,
		healthHandler:     handlers.NewHealthHandler(cfg, container.Inference),
		systemHandler:     handlers.NewSystemHandler(cfg, container.Inference, logs),
		cameraHandler:     handlers.NewCameraHandler(cfg, container.Camera, container.Inference, container.Messaging),
		collectionHandler: handlers.NewCollectionHandler(container.Scheduler),
	}

	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s, nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
