package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"humana-api/internal/config"

	"github.com/gin-gonic/gin"
)

var Logger *slog.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	InitLoggerWithWriter(cfg, os.Stdout)
}

func InitLoggerWithWriter(cfg *config.Config, w io.Writer) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug", // Only add source in debug mode
	}

	Logger = slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// FromGin returns a logger tagged with the request id, when one is set.
func FromGin(c *gin.Context) *slog.Logger {
	if id := c.GetString("request_id"); id != "" {
		return Logger.With("request_id", id)
	}
	return Logger
}

type ctxKey struct{}

// WithRequestID stores the request id on ctx so FromContext can tag log lines
// emitted below the transport layer.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return Logger.With("request_id", id)
	}
	return Logger
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
