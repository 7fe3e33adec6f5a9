package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthHandler.HealthCheck)
		api.GET("/status", s.systemHandler.GetStatus)
		api.POST("/config", s.systemHandler.SaveConfig)
		api.GET("/logs", s.systemHandler.GetLogs)

		api.POST("/detector/start", s.systemHandler.StartDetector)
		api.POST("/detector/stop", s.systemHandler.StopDetector)

		api.POST("/predict/test", s.cameraHandler.TestPrediction)

		camera := api.Group("/camera")
		{
			camera.GET("/status", s.cameraHandler.Status)
			camera.GET("/stream", s.cameraHandler.Stream)
			camera.POST("/capture", s.cameraHandler.CaptureAndPredict)
			camera.POST("/take_image", s.cameraHandler.TakeImage)
		}

		collection := s.collectionHandler
		col := api.Group("/collection")
		{
			col.POST("/start", collection.Start)
			col.GET("/status", collection.Status)
			col.POST("/pause", collection.Pause)
			col.POST("/resume", collection.Resume)
			col.POST("/cancel", collection.Cancel)

			col.GET("/folders", collection.ListFolders)
			col.GET("/folders/:folder/images", collection.FolderImages)
			col.GET("/folders/:folder/images/:image", collection.ServeImage)
			col.GET("/folders/:folder/download", collection.DownloadFolder)
			col.DELETE("/folders/:folder", collection.DeleteFolder)
		}
	}

	// Serve the operator UI when a public dir is present.
	if st, err := os.Stat(s.config.PublicDir); err == nil && st.IsDir() {
		fs := http.FileServer(http.Dir(s.config.PublicDir))
		s.router.NoRoute(gin.WrapH(fs))
	}
}
