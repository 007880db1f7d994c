// Package transfersource wraps a raw transfer source with a rate limit and
// a circuit breaker, grounded in the teacher's
// internal/infrastructure/providers/circuitbreakers.go CircuitBreakerManager.
package transfersource

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

// Source is the raw, unwrapped boundary (e.g. postgres.TransferSource).
type Source interface {
	List(ctx context.Context, chain string, from, to time.Time) ([]graph.Transfer, error)
}

// Guarded implements snapshot.TransferSource, adding a per-call rate limit
// and a circuit breaker so a flaky or slow upstream doesn't stall every
// scheduled job (SPEC_FULL.md §5).
type Guarded struct {
	source  Source
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Config controls the rate limit and breaker trip condition.
type Config struct {
	RequestsPerSecond float64
	Burst             int

	BreakerName             string
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerConsecutiveTrips uint32
}

// DefaultConfig mirrors the teacher's provider breaker defaults, scaled down
// for a single read-only database source rather than an external API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond:       20,
		Burst:                   5,
		BreakerName:             "transfer_source",
		BreakerMaxRequests:      1,
		BreakerInterval:         30 * time.Second,
		BreakerTimeout:          10 * time.Second,
		BreakerConsecutiveTrips: 5,
	}
}

// New wraps source with the given Config.
func New(source Source, cfg Config) *Guarded {
	settings := gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerConsecutiveTrips
		},
	}
	return &Guarded{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// List applies the rate limit, then runs the call through the breaker.
func (g *Guarded) List(ctx context.Context, chain string, from, to time.Time) ([]graph.Transfer, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.source.List(ctx, chain, from, to)
	})
	if err != nil {
		return nil, err
	}
	return result.([]graph.Transfer), nil
}
