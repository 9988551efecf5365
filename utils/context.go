package utils

import (
	"context"
	"time"
)

// DefaultTimeout bounds external calls whose timeout is not configured.
const DefaultTimeout = 10 * time.Second

// WithCustomTimeout bounds parent by duration, falling back to DefaultTimeout
// when duration is not positive so no external call runs unbounded.
func WithCustomTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = DefaultTimeout
	}
	return context.WithTimeout(parent, duration)
}
