package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (s *Server) setupSwagger() {
	s.router.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"title":       "Pivision Station API",
			"version":     s.config.Version,
			"description": "Camera station backend for anomaly detection and scheduled training data collection",
			"swagger_ui":  "/docs/index.html",
			"endpoints": gin.H{
				"health":     "/api/health",
				"status":     "/api/status",
				"camera":     "/api/camera",
				"collection": "/api/collection",
				"detector":   "/api/detector",
			},
			"station_id": s.config.StationID,
			"port":       s.config.Port,
		})
	})

	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
}
