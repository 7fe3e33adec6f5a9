package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pivision/internal/config"
	"pivision/internal/services/inference"
)

type HealthHandler struct {
	cfg       *config.Config
	inference *inference.Client
}

func NewHealthHandler(cfg *config.Config, inf *inference.Client) *HealthHandler {
	return &HealthHandler{cfg: cfg, inference: inf}
}

type HealthResponse struct {
	Status     string `json:"status" example:"healthy"`
	WebServer  string `json:"webServer" example:"ok"`
	TorchServe string `json:"torchserve" example:"ok"`
	Timestamp  string `json:"timestamp"`
}

// HealthCheck reports web server and inference service health
// @Summary Health check
// @Description Check the web server and the remote inference service
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	torchserve := "unhealthy"
	if h.inference.CheckHealth(c.Request.Context()).Healthy {
		torchserve = "ok"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		WebServer:  "ok",
		TorchServe: torchserve,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}
