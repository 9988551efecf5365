package routes

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"humana-api/handlers"
	"humana-api/internal/auth"
	"humana-api/internal/logger"
	"humana-api/internal/telemetry"
	"humana-api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Options carries the transport settings for NewRouter.
type Options struct {
	CORSOrigins     []string
	MaxBodySize     int64
	MaxAudioSize    int64
	RateLimitReqs   int
	RateLimitWindow int
	Redis           *redis.Client
	Metrics         *telemetry.Metrics
	Tracing         bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *handlers.Handlers, verifier auth.Verifier, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if opts.Tracing {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(opts.Metrics))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddlewareWithOrigins(opts.CORSOrigins))

	am := middleware.NewAuthMiddleware(verifier)
	limiter := middleware.RateLimitMiddleware(opts.Redis, opts.RateLimitReqs, opts.RateLimitWindow)

	SetupHealthRoutes(router, h)
	SetupChatRoutes(router, h, am, limiter, opts)
	SetupAdminRoutes(router, h, am, limiter, opts)
	return router
}

// adapt runs a transport-neutral handler inside gin.
func adapt(fn handlers.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := fn(&ginRequest{c: c})
		if resp.Err != nil {
			if resp.Err.Err != nil {
				_ = c.Error(resp.Err.Err)
			}
			if resp.Status >= http.StatusInternalServerError {
				logger.FromGin(c).Error("Request failed", "code", resp.Err.Code, "error", resp.Err.Error())
			}
		}
		if resp.Raw != nil {
			c.Data(resp.Status, resp.ContentType, resp.Raw)
			return
		}
		c.JSON(resp.Status, resp.Body)
	}
}

type ginRequest struct {
	c *gin.Context
}

func (g *ginRequest) Context() context.Context { return g.c.Request.Context() }

func (g *ginRequest) DecodeJSON(v interface{}) error {
	return g.c.ShouldBindJSON(v)
}

func (g *ginRequest) FormFile(field string) (multipart.File, *multipart.FileHeader, error) {
	header, err := g.c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, handlers.ErrNoFile
	}
	if err != nil {
		return nil, nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return f, header, nil
}

func (g *ginRequest) FormValue(field string) string { return g.c.PostForm(field) }

func (g *ginRequest) Principal() *auth.Principal { return middleware.GetPrincipal(g.c) }

func (g *ginRequest) RequestID() string { return middleware.GetRequestID(g.c) }
