package routes

import (
	"humana-api/handlers"
	"humana-api/middleware"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes registers the authenticated end-user endpoints.
func SetupChatRoutes(router *gin.Engine, h *handlers.Handlers, am *middleware.AuthMiddleware, limiter gin.HandlerFunc, opts Options) {
	v1 := router.Group("/v1")
	v1.Use(am.RequireAuth(), limiter)

	v1.POST("/chat", middleware.RequestSizeLimit(opts.MaxBodySize), adapt(h.Chat))
	v1.POST("/tts", middleware.RequestSizeLimit(opts.MaxBodySize), adapt(h.Synthesize))
	v1.POST("/stt", middleware.RequestSizeLimit(opts.MaxAudioSize), adapt(h.Transcribe))
}
