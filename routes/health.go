package routes

import (
	"humana-api/handlers"

	"github.com/gin-gonic/gin"
)

func SetupHealthRoutes(router *gin.Engine, h *handlers.Handlers) {
	router.GET("/health", adapt(h.Health))
	router.GET("/ready", adapt(h.Ready))
}
