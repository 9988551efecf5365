package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"humana-api/internal/logger"
	"humana-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware applies a fixed-window limit per caller and route in
// Redis. Authenticated callers are keyed by user id, others by client IP,
// and admins get ten times the base allowance. Redis errors fail open.
func RateLimitMiddleware(rdb *redis.Client, limit, windowSecs int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 || c.FullPath() == "/health" || c.FullPath() == "/ready" {
			c.Next()
			return
		}

		identity := "ip:" + c.ClientIP()
		effective := limit
		if p := GetPrincipal(c); p != nil {
			identity = "user:" + p.ID
			if p.Admin {
				effective = limit * 10
			}
		}
		key := "ratelimit:" + identity + ":" + c.FullPath()
		window := time.Duration(windowSecs) * time.Second

		ctx := c.Request.Context()
		count, err := incrWindow(ctx, rdb, key, window)
		if err != nil {
			logger.FromGin(c).Warn("Rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(effective))
		if count > int64(effective) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))
			utils.RespondWithAppError(c, &utils.AppError{
				Kind:    utils.KindValidation,
				Status:  http.StatusTooManyRequests,
				Code:    "rate_limit_exceeded",
				Message: "Too many requests. Please try again later.",
				Details: gin.H{"retry_after": windowSecs, "limit": effective},
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(effective-int(count)))
		c.Next()
	}
}

// incrWindow counts one request against key. The expiry is set whenever the
// key has none, so a failed EXPIRE is repaired on the next request instead
// of leaving a counter that never resets.
func incrWindow(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if ttl.Val() < 0 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("set rate limit window: %w", err)
		}
	}
	return incr.Val(), nil
}
