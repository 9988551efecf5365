package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"humana-api/handlers"
	"humana-api/internal/config"
	"humana-api/internal/logger"
	"humana-api/internal/telemetry"
	"humana-api/routes"
	"humana-api/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.OTelEndpoint, cfg.GinMode, cfg.TraceSampleRatio)
	if err != nil {
		log.Fatal("Failed to initialize tracing:", err)
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx := context.Background()
	container, err := services.NewContainer(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer container.Close()

	if err := container.Probe.Start(cfg.StoreProbeCron); err != nil {
		logger.Warn("Store probe not scheduled", "cron", cfg.StoreProbeCron, "error", err)
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(handlers.New(container), container.Verifier, routes.Options{
		CORSOrigins:     cfg.CORSOrigins,
		MaxBodySize:     cfg.MaxBodySize,
		MaxAudioSize:    cfg.MaxAudioSize,
		RateLimitReqs:   cfg.RateLimitReqs,
		RateLimitWindow: cfg.RateLimitWindow,
		Redis:           container.Redis,
		Metrics:         metrics,
		Tracing:         cfg.OTelEndpoint != "",
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "auth", cfg.AuthStrategy,
			"llm", cfg.LLMProvider, "embeddings", cfg.EmbeddingsProvider, "store", cfg.RAGStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown failed", "error", err)
	}

	logger.Info("Server exited")
}
