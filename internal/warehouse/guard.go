// Package warehouse records live snapshots into the timeseries and alert
// stores and reads history back, isolating the live path from store failures.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"vectorquant/internal/metrics"
	"vectorquant/internal/observability"
	"vectorquant/internal/storage"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("warehouse unavailable")

// GuardSettings configures a Guard.
type GuardSettings struct {
	Name         string
	CallTimeout  time.Duration // per call deadline
	OpenFor      time.Duration // how long the breaker stays open
	MinRequests  uint32        // requests in a window before the ratio is considered
	FailureRatio float64       // trip when failures/requests reaches this
}

// DefaultGuardSettings returns the settings used when none are configured.
func DefaultGuardSettings(name string) GuardSettings {
	return GuardSettings{
		Name:         name,
		CallTimeout:  2 * time.Second,
		OpenFor:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// Guard bounds every warehouse call with a deadline and a circuit breaker.
type Guard struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewGuard creates a guard. Zero fields in s fall back to DefaultGuardSettings.
func NewGuard(s GuardSettings, logger *zap.Logger) *Guard {
	def := DefaultGuardSettings(s.Name)
	if s.CallTimeout <= 0 {
		s.CallTimeout = def.CallTimeout
	}
	if s.OpenFor <= 0 {
		s.OpenFor = def.OpenFor
	}
	if s.MinRequests == 0 {
		s.MinRequests = def.MinRequests
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = def.FailureRatio
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && ratio >= s.FailureRatio
		},
		// Lookups for missing rows and rejected input are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, storage.ErrNotFound) ||
				errors.Is(err, storage.ErrInvalidInput) ||
				errors.Is(err, storage.ErrDuplicateKey) ||
				errors.Is(err, metrics.ErrNoPoints)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			observability.UpdateBreakerState(name, int(to))
		},
	})

	return &Guard{cb: cb, timeout: s.CallTimeout}
}

// Do runs fn under the breaker with a deadline derived from ctx.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Query(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Query runs fn under the breaker and returns its result.
func Query[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	res, err := g.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %s", ErrUnavailable, g.cb.Name())
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// State reports the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}
