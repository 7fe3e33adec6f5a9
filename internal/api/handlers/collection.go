package handlers

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pivision/internal/models"
	"pivision/internal/services/collection"
)

type CollectionHandler struct {
	scheduler *collection.Scheduler
}

func NewCollectionHandler(scheduler *collection.Scheduler) *CollectionHandler {
	return &CollectionHandler{scheduler: scheduler}
}

// schedulerStatus maps scheduler errors to HTTP status codes. Precondition
// and validation failures are the caller's fault.
func schedulerStatus(err error) int {
	switch {
	case errors.Is(err, collection.ErrAlreadyActive),
		errors.Is(err, collection.ErrNotActive),
		errors.Is(err, collection.ErrNotPaused),
		errors.Is(err, collection.ErrInvalidSchedule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Start begins a new collection campaign
// @Summary Start collection
// @Tags collection
// @Accept json
// @Produce json
// @Param request body models.ScheduleConfig true "Campaign configuration"
// @Success 200 {object} models.StartResult
// @Failure 400 {object} map[string]interface{}
// @Router /api/collection/start [post]
func (h *CollectionHandler) Start(c *gin.Context) {
	var cfg models.ScheduleConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.scheduler.Start(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start collection")
		c.JSON(schedulerStatus(err), gin.H{"error": err.Error()})
		return
	}

	log.Info().Str("folder", result.FolderName).Msg("Data collection started")
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"folderName": result.FolderName,
		"totalSlots": result.TotalSlots,
	})
}

// Status returns the collection status snapshot
// @Summary Collection status
// @Tags collection
// @Produce json
// @Success 200 {object} models.CollectionStatus
// @Router /api/collection/status [get]
func (h *CollectionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// Pause suspends the active campaign
// @Summary Pause collection
// @Tags collection
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/collection/pause [post]
func (h *CollectionHandler) Pause(c *gin.Context) {
	if err := h.scheduler.Pause(); err != nil {
		c.JSON(schedulerStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Resume continues a paused campaign
// @Summary Resume collection
// @Tags collection
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/collection/resume [post]
func (h *CollectionHandler) Resume(c *gin.Context) {
	if err := h.scheduler.Resume(); err != nil {
		c.JSON(schedulerStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type cancelRequest struct {
	DeleteImages bool `json:"deleteImages"`
}

// Cancel aborts the active campaign
// @Summary Cancel collection
// @Tags collection
// @Accept json
// @Produce json
// @Param request body cancelRequest false "Cancel options"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/collection/cancel [post]
func (h *CollectionHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	c.ShouldBindJSON(&req)

	if err := h.scheduler.Cancel(req.DeleteImages); err != nil {
		c.JSON(schedulerStatus(err), gin.H{"error": err.Error()})
		return
	}
	log.Info().Bool("images_deleted", req.DeleteImages).Msg("Collection cancelled")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListFolders lists all collection folders
// @Summary List collection folders
// @Tags collection
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/collection/folders [get]
func (h *CollectionHandler) ListFolders(c *gin.Context) {
	folders, err := h.scheduler.ListCollections()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// FolderImages lists images in one collection folder
// @Summary List images in a folder
// @Tags collection
// @Produce json
// @Param folder path string true "Folder name"
// @Success 200 {object} map[string]interface{}
// @Router /api/collection/folders/{folder}/images [get]
func (h *CollectionHandler) FolderImages(c *gin.Context) {
	images, err := h.scheduler.FolderImages(c.Param("folder"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// ServeImage serves one collected image
// @Summary Serve a collected image
// @Tags collection
// @Produce jpeg
// @Param folder path string true "Folder name"
// @Param image path string true "Image file name"
// @Router /api/collection/folders/{folder}/images/{image} [get]
func (h *CollectionHandler) ServeImage(c *gin.Context) {
	path, err := h.scheduler.ImagePath(c.Param("folder"), c.Param("image"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.File(path)
}

// DownloadFolder streams a collection folder as a zip archive
// @Summary Download a folder as zip
// @Tags collection
// @Produce octet-stream
// @Param folder path string true "Folder name"
// @Router /api/collection/folders/{folder}/download [get]
func (h *CollectionHandler) DownloadFolder(c *gin.Context) {
	folderName := c.Param("folder")
	images, err := h.scheduler.FolderImages(folderName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", folderName+".zip"))

	zw := zip.NewWriter(c.Writer)
	defer zw.Close()

	for _, image := range images {
		path, err := h.scheduler.ImagePath(folderName, image)
		if err != nil {
			continue
		}
		entry, err := zw.Create(filepath.Base(image))
		if err != nil {
			log.Error().Err(err).Str("image", image).Msg("zip entry failed")
			return
		}
		f, err := os.Open(path)
		if err != nil {
			log.Warn().Err(err).Str("image", image).Msg("skipping unreadable image")
			continue
		}
		_, err = io.Copy(entry, f)
		f.Close()
		if err != nil {
			log.Error().Err(err).Str("image", image).Msg("zip write failed")
			return
		}
	}
}

// DeleteFolder removes a collection folder
// @Summary Delete a collection folder
// @Tags collection
// @Produce json
// @Param folder path string true "Folder name"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/collection/folders/{folder} [delete]
func (h *CollectionHandler) DeleteFolder(c *gin.Context) {
	if err := h.scheduler.DeleteCollection(c.Param("folder")); err != nil {
		log.Error().Err(err).Str("folder", c.Param("folder")).Msg("Failed to delete collection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("folder", c.Param("folder")).Msg("Deleted collection")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
