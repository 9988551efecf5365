// Command function serves the API on plain net/http for platforms that
// invoke a single handler binary.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"humana-api/handlers"
	"humana-api/internal/config"
	"humana-api/internal/logger"
	"humana-api/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	container, err := services.NewContainer(context.Background(), cfg, nil)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer container.Close()

	mux := handlers.NewServeMux(handlers.New(container), container.Verifier, cfg.MaxBodySize, cfg.MaxAudioSize)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Function server starting", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
