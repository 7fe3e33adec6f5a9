package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pivision/internal/config"
	"pivision/internal/models"
	"pivision/internal/services/camera"
	"pivision/internal/services/inference"
	"pivision/internal/services/messaging"
)

// allowedUploadExts guards the test-prediction upload endpoint.
var allowedUploadExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
}

type CameraHandler struct {
	cfg       *config.Config
	camera    *camera.Service
	inference *inference.Client
	events    *messaging.Service // nil when NATS is disabled
}

func NewCameraHandler(cfg *config.Config, cam *camera.Service, inf *inference.Client, events *messaging.Service) *CameraHandler {
	return &CameraHandler{cfg: cfg, camera: cam, inference: inf, events: events}
}

// Status reports camera availability
// @Summary Camera status
// @Tags camera
// @Produce json
// @Success 200 {object} models.CameraStatus
// @Router /api/camera/status [get]
func (h *CameraHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.camera.CheckAvailability())
}

// Stream serves a live MJPEG stream from the camera
// @Summary Camera MJPEG stream
// @Tags camera
// @Produce mpfd
// @Router /api/camera/stream [get]
func (h *CameraHandler) Stream(c *gin.Context) {
	const boundary = "frame"
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	w := c.Writer
	err := h.camera.StreamFrames(c.Request.Context(), func(jpeg []byte) error {
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpeg)); err != nil {
			return err
		}
		if _, err := w.Write(jpeg); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Camera stream error")
	}
}

type captureRequest struct {
	Threshold      *float64 `json:"threshold"`
	IncludeOverlay bool     `json:"includeOverlay"`
}

func (r *captureRequest) options() models.PredictOptions {
	threshold := 0.5
	if r.Threshold != nil {
		threshold = *r.Threshold
	}
	return models.PredictOptions{Threshold: threshold, IncludeOverlay: r.IncludeOverlay}
}

// CaptureAndPredict captures a frame and runs anomaly detection on it
// @Summary Capture and predict
// @Tags camera
// @Accept json
// @Produce json
// @Success 200 {object} models.PredictionResult
// @Failure 500 {object} map[string]interface{}
// @Router /api/camera/capture [post]
func (h *CameraHandler) CaptureAndPredict(c *gin.Context) {
	var req captureRequest
	// Body is optional; defaults apply when absent.
	c.ShouldBindJSON(&req)

	log.Info().Msg("Capturing frame from camera")
	frame, err := h.camera.CaptureFrame(c.Request.Context(), h.defaultResolution())
	if err != nil {
		log.Error().Err(err).Msg("Camera capture failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.inference.Predict(c.Request.Context(), frame, req.options())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result.Image = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
	h.publishDetection(result)
	h.logPrediction(result)
	c.JSON(http.StatusOK, result)
}

// TakeImage captures a single image with an availability pre-check
// @Summary Take a single image
// @Tags camera
// @Accept json
// @Produce json
// @Success 200 {object} models.PredictionResult
// @Failure 400 {object} map[string]interface{}
// @Router /api/camera/take_image [post]
func (h *CameraHandler) TakeImage(c *gin.Context) {
	status := h.camera.CheckAvailability()
	if !status.Available {
		log.Error().Str("reason", status.Error).Msg("Camera not available")
		c.JSON(http.StatusBadRequest, gin.H{"error": status.Error, "camera_status": status})
		return
	}

	var req captureRequest
	c.ShouldBindJSON(&req)

	frame, err := h.camera.CaptureFrame(c.Request.Context(), h.defaultResolution())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"details": gin.H{
				"camera_status":     h.camera.CheckAvailability(),
				"torchserve_status": h.inference.CheckHealth(c.Request.Context()),
			},
		})
		return
	}

	result, err := h.inference.Predict(c.Request.Context(), frame, req.options())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result.Image = base64.StdEncoding.EncodeToString(frame)
	h.publishDetection(result)
	h.logPrediction(result)
	c.JSON(http.StatusOK, result)
}

// TestPrediction runs anomaly detection on an uploaded image
// @Summary Test prediction with an uploaded image
// @Tags camera
// @Accept mpfd
// @Produce json
// @Success 200 {object} models.PredictionResult
// @Failure 400 {object} map[string]interface{}
// @Router /api/predict/test [post]
func (h *CameraHandler) TestPrediction(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}
	if !allowedUploadExts[strings.ToLower(filepath.Ext(file.Filename))] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	threshold := 0.5
	if v, err := strconv.ParseFloat(c.DefaultPostForm("threshold", "0.5"), 64); err == nil {
		threshold = v
	}
	includeOverlay := strings.EqualFold(c.DefaultPostForm("includeOverlay", "false"), "true")

	log.Info().Str("filename", file.Filename).Msg("Testing prediction with uploaded image")
	result, err := h.inference.Predict(c.Request.Context(), image, models.PredictOptions{
		Threshold:      threshold,
		IncludeOverlay: includeOverlay,
	})
	if err != nil {
		log.Error().Err(err).Msg("Prediction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logPrediction(result)
	c.JSON(http.StatusOK, result)
}

func (h *CameraHandler) defaultResolution() models.Resolution {
	return models.Resolution{Width: h.cfg.CameraWidth, Height: h.cfg.CameraHeight}
}

func (h *CameraHandler) logPrediction(result *models.PredictionResult) {
	verdict := "NORMAL"
	if result.IsAnomaly {
		verdict = "ANOMALY"
	}
	log.Info().
		Str("verdict", verdict).
		Float64("score", result.AnomalyScore).
		Int64("inference_ms", result.InferenceTimeMS).
		Msg("Prediction")
}

func (h *CameraHandler) publishDetection(result *models.PredictionResult) {
	if h.events == nil {
		return
	}
	err := h.events.Publish(messaging.SubjectDetection, map[string]interface{}{
		"stationId":      h.cfg.StationID,
		"isAnomaly":      result.IsAnomaly,
		"anomalyScore":   result.AnomalyScore,
		"predictedClass": result.PredictedClass,
	})
	if err != nil {
		log.Debug().Err(err).Msg("detection event publish failed")
	}
}
