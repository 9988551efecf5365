package ai

import (
	"context"
	"errors"
	"time"

	"humana-api/internal/logger"
	"humana-api/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned without calling the provider while the breaker is open.
var ErrCircuitOpen = errors.New("provider temporarily unavailable")

// Guard wraps every outbound model call with a rate limiter, a circuit
// breaker and a trace span. It never retries.
type Guard struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGuard(name string, requestsPerMinute int, metrics *telemetry.Metrics) *Guard {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// A caller hanging up says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		burst := requestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}

	return &Guard{name: name, breaker: breaker, limiter: limiter}
}

// Execute runs fn under the guard. The span is named after op.
func (g *Guard) Execute(ctx context.Context, op string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ctx, span := otel.Tracer("humana-api/ai").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("ai.guard", g.name))

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("ai.rate_limited", true))
			span.SetStatus(codes.Error, "rate limiter")
			return nil, err
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("ai.circuit_breaker_open", true))
			err = ErrCircuitOpen
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// State exposes the breaker state for readiness reporting.
func (g *Guard) State() string {
	return g.breaker.State().String()
}
