package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pivision/internal/config"
	"pivision/internal/logging"
	"pivision/internal/services/inference"
)

const settingsFileName = "settings.json"

// SystemHandler serves system status, operator settings, recent logs and the
// detector toggle.
type SystemHandler struct {
	cfg       *config.Config
	inference *inference.Client
	logs      *logging.Buffer
	startedAt time.Time

	mu              sync.Mutex
	detectorRunning bool
}

func NewSystemHandler(cfg *config.Config, inf *inference.Client, logs *logging.Buffer) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		inference: inf,
		logs:      logs,
		startedAt: time.Now(),
	}
}

// GetStatus returns the overall station status
// @Summary System status
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/status [get]
func (h *SystemHandler) GetStatus(c *gin.Context) {
	modelUploaded := false
	if entries, err := os.ReadDir(h.cfg.ModelsDir); err == nil {
		for _, e := range entries {
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".onnx", ".pt", ".pth":
				modelUploaded = true
			}
		}
	}

	settings := h.loadSettings()

	h.mu.Lock()
	detectorRunning := h.detectorRunning
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"detectorRunning":      detectorRunning,
		"modelUploaded":        modelUploaded,
		"configured":           len(settings) > 0,
		"torchserveHealthy":    h.inference.CheckHealth(c.Request.Context()).Healthy,
		"uptime":               time.Since(h.startedAt).Seconds(),
		"logs":                 h.logs.Tail(10),
		"config":               settings,
		"predictionServiceUrl": h.inference.BaseURL(),
	})
}

// SaveConfig persists operator settings
// @Summary Save configuration
// @Tags system
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/config [post]
func (h *SystemHandler) SaveConfig(c *gin.Context) {
	var settings map[string]interface{}
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := os.MkdirAll(h.cfg.ConfigDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := os.WriteFile(filepath.Join(h.cfg.ConfigDir, settingsFileName), data, 0o644); err != nil {
		log.Error().Err(err).Msg("Configuration save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Info().Msg("Configuration saved")
	c.JSON(http.StatusOK, gin.H{"success": true, "config": settings})
}

// GetLogs returns recent log lines
// @Summary Recent logs
// @Tags system
// @Produce json
// @Param limit query int false "Max lines" default(100)
// @Success 200 {object} map[string]interface{}
// @Router /api/logs [get]
func (h *SystemHandler) GetLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	c.JSON(http.StatusOK, gin.H{"logs": h.logs.Tail(limit)})
}

// StartDetector enables continuous anomaly monitoring
// @Summary Start detector
// @Tags detector
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/detector/start [post]
func (h *SystemHandler) StartDetector(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.detectorRunning {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Detector already running"})
		return
	}

	settings := h.loadSettings()
	if len(settings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Configuration not found"})
		return
	}
	if !h.inference.CheckHealth(c.Request.Context()).Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "TorchServe not ready"})
		return
	}

	h.detectorRunning = true
	log.Info().Interface("config", settings).Msg("Detector started")
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "running"})
}

// StopDetector disables continuous anomaly monitoring
// @Summary Stop detector
// @Tags detector
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/detector/stop [post]
func (h *SystemHandler) StopDetector(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.detectorRunning {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Detector not running"})
		return
	}

	h.detectorRunning = false
	log.Info().Msg("Detector stopped")
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "stopped"})
}

func (h *SystemHandler) loadSettings() map[string]interface{} {
	data, err := os.ReadFile(filepath.Join(h.cfg.ConfigDir, settingsFileName))
	if err != nil {
		return map[string]interface{}{}
	}
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return map[string]interface{}{}
	}
	return settings
}
