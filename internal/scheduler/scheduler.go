// Package scheduler implements the cooperative job scheduler of §5: a small
// fixed table of periodic jobs, each exclusive on a named resource (a
// window, a network, a horizon, or the global lock), replacing scattered
// per-module timers with a single owned registry.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/signalgraph/internal/metrics"
)

// Job is one periodic unit of work, exclusive on LockKey: if a previous
// invocation holding that key is still running when the ticker fires, the
// tick is skipped rather than queued.
type Job struct {
	Name    string
	Period  time.Duration
	LockKey string
	Run     func(ctx context.Context) error
}

// Scheduler owns the job table and the per-resource exclusivity locks.
// Module-level mutable state is confined to this registry, initialized at
// startup.
type Scheduler struct {
	log     zerolog.Logger
	metrics *metrics.Registry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	jobs  []Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an empty Scheduler. Metrics are disabled until WithMetrics
// is called; runs and skips are always logged regardless.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log, locks: map[string]*sync.Mutex{}}
}

// WithMetrics attaches a Prometheus registry so job runs and overlap-skips
// are published, not just logged. Returns the Scheduler for chaining.
func (s *Scheduler) WithMetrics(reg *metrics.Registry) *Scheduler {
	s.metrics = reg
	return s
}

// Register adds a job to the table. Must be called before Start.
func (s *Scheduler) Register(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	if _, ok := s.locks[j.LockKey]; !ok {
		s.locks[j.LockKey] = &sync.Mutex{}
	}
}

// Start launches a goroutine per registered job, ticking at its configured
// period until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}
}

// Stop cancels every running job loop and waits for in-flight runs to
// observe the cancellation before their next store write (cooperative
// cancellation, §5).
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j Job) {
	s.mu.Lock()
	lock := s.locks[j.LockKey]
	s.mu.Unlock()

	if !lock.TryLock() {
		s.log.Debug().Str("job", j.Name).Str("lock", j.LockKey).Msg("skipping tick, previous run still in progress")
		if s.metrics != nil {
			s.metrics.JobSkippedOverlap.WithLabelValues(j.Name).Inc()
		}
		return
	}
	defer lock.Unlock()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		elapsed := time.Since(start)
		s.log.Error().Err(err).Str("job", j.Name).Dur("elapsed", elapsed).Msg("job run failed")
		if s.metrics != nil {
			s.metrics.RunDuration.WithLabelValues(j.Name, "error").Observe(elapsed.Seconds())
			s.metrics.RunsTotal.WithLabelValues(j.Name, "error").Inc()
		}
		return
	}
	elapsed := time.Since(start)
	s.log.Debug().Str("job", j.Name).Dur("elapsed", elapsed).Msg("job run completed")
	if s.metrics != nil {
		s.metrics.RunDuration.WithLabelValues(j.Name, "ok").Observe(elapsed.Seconds())
		s.metrics.RunsTotal.WithLabelValues(j.Name, "ok").Inc()
	}
}
