package routes

import (
	"humana-api/handlers"
	"humana-api/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes registers the document ingestion endpoints. Every route
// requires the admin role.
func SetupAdminRoutes(router *gin.Engine, h *handlers.Handlers, am *middleware.AuthMiddleware, limiter gin.HandlerFunc, opts Options) {
	admin := router.Group("/admin")
	admin.Use(am.RequireAdmin(), limiter)

	upload := admin.Group("/rag-upload")
	upload.Use(middleware.RequestSizeLimit(opts.MaxBodySize))
	upload.POST("", adapt(h.IngestDocument))
	upload.POST("/pdf", adapt(h.IngestPDF))
	upload.POST("/async", adapt(h.IngestAsync))

	admin.GET("/rag-stats", adapt(h.Stats))
}
