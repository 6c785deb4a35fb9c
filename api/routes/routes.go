package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/attachment-extractor/api/handlers"
	"github.com/feichai0017/attachment-extractor/api/middleware"
)

// SetupRoutes registers the API surface.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())

	v1 := r.Group("/api/v1")

	v1.GET("/health", h.Parse.Health)

	docs := v1.Group("/documents")
	{
		docs.POST("/parse", h.Parse.ParseDocument)
		docs.GET("/diagnostics", h.Parse.Diagnostics)
	}
}
