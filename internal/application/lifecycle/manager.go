// Package lifecycle implements the LifecycleManager state machine of §4.5:
// NEW -> ACTIVE -> COOLDOWN -> RESOLVED per signalKey, with re-trigger reset
// and strictly monotonic resolution.
package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/domain/signals"
	"github.com/sawpanic/signalgraph/internal/metrics"
)

// Store is the persistence contract for durable signals: exactly one live
// record per signalKey.
type Store interface {
	Get(ctx context.Context, key signals.SignalKey) (*signals.Signal, error)
	Upsert(ctx context.Context, sig signals.Signal) error
	// ListLive returns every ACTIVE or COOLDOWN signal for the window, used
	// to age out signals that were not re-triggered this run.
	ListLive(ctx context.Context, window string) ([]signals.Signal, error)
}

// Trigger is one confidence-scored candidate emitted by the RuleEngine and
// ConfidenceScorer in the current run.
type Trigger struct {
	Key             signals.SignalKey
	Candidate       signals.SignalCandidate
	ConfidenceScore float64
	Label           signals.Label
	Trace           signals.Trace
}

// Manager applies one engine run's triggers against the store.
type Manager struct {
	store   Store
	cfg     config.LifecycleConfig
	log     zerolog.Logger
	metrics *metrics.Registry
}

// New constructs a Manager.
func New(store Store, cfg config.LifecycleConfig, log zerolog.Logger) *Manager {
	return &Manager{store: store, cfg: cfg, log: log}
}

// WithMetrics attaches a metrics registry; transitions are only recorded
// once this is set.
func (m *Manager) WithMetrics(reg *metrics.Registry) *Manager {
	m.metrics = reg
	return m
}

func (m *Manager) recordTransition(from, to signals.Lifecycle) {
	if m.metrics != nil {
		m.metrics.LifecycleTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

// Apply processes one run's triggers plus the decay of existing live
// signals not re-triggered this run, and returns every signal touched.
// Concurrent calls for the same window must be serialized by the caller
// (§5); the store lookup inside one call is the sole new-vs-existing
// decision point.
func (m *Manager) Apply(ctx context.Context, window string, runAt time.Time, triggers []Trigger) ([]signals.Signal, error) {
	triggeredKeys := make(map[signals.SignalKey]struct{}, len(triggers))
	for _, t := range triggers {
		triggeredKeys[t.Key] = struct{}{}
	}

	var touched []signals.Signal

	for _, t := range triggers {
		existing, err := m.store.Get(ctx, t.Key)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Lifecycle == signals.LifecycleResolved {
			// Lifecycle monotonicity: RESOLVED never reverts.
			continue
		}
		if t.ConfidenceScore < m.cfg.MinConfidence {
			// HIDDEN: never persisted, and doesn't count as a re-trigger for
			// an existing live record's decay accounting.
			delete(triggeredKeys, t.Key)
			continue
		}

		var fromState signals.Lifecycle
		if existing != nil {
			fromState = existing.Lifecycle
		}

		var sig signals.Signal
		if existing == nil {
			sig = signals.Signal{
				SignalKey:        t.Key,
				Type:             t.Candidate.Type,
				Severity:         t.Candidate.Severity,
				Scope:            t.Candidate.Scope,
				Window:           t.Candidate.Window,
				Entities:         t.Candidate.Entities,
				Summary:          t.Candidate.Summary,
				Evidence:         t.Candidate.Evidence,
				ConfidenceScore:  t.ConfidenceScore,
				Label:            t.Label,
				Trace:            t.Trace,
				Lifecycle:        signals.LifecycleActive,
				FirstTriggeredAt: runAt,
				LastTriggeredAt:  runAt,
				CreatedAt:        runAt,
				UpdatedAt:        runAt,
			}
		} else {
			sig = *existing
			sig.Severity = t.Candidate.Severity
			sig.Entities = t.Candidate.Entities
			sig.Summary = t.Candidate.Summary
			sig.Evidence = t.Candidate.Evidence
			sig.ConfidenceScore = t.ConfidenceScore
			sig.Label = t.Label
			sig.Trace = t.Trace
			sig.Lifecycle = signals.LifecycleActive // re-trigger from COOLDOWN returns to ACTIVE
			sig.SnapshotsWithoutTrigger = 0
			sig.LastTriggeredAt = runAt
			sig.UpdatedAt = runAt
		}

		if err := m.store.Upsert(ctx, sig); err != nil {
			return nil, err
		}
		m.recordTransition(fromState, sig.Lifecycle)
		touched = append(touched, sig)
	}

	live, err := m.store.ListLive(ctx, window)
	if err != nil {
		return nil, err
	}
	for _, sig := range live {
		if _, ok := triggeredKeys[sig.SignalKey]; ok {
			continue // already handled above
		}
		sig.SnapshotsWithoutTrigger++
		sig.UpdatedAt = runAt

		from := sig.Lifecycle
		switch {
		case sig.Lifecycle == signals.LifecycleActive && sig.SnapshotsWithoutTrigger >= m.cfg.CooldownAfterRuns:
			sig.Lifecycle = signals.LifecycleCooldown
		case sig.Lifecycle == signals.LifecycleCooldown &&
			sig.SnapshotsWithoutTrigger >= m.cfg.CooldownAfterRuns+m.cfg.ResolveAfterRuns:
			sig.Lifecycle = signals.LifecycleResolved
			sig.ResolveReason = "inactivity"
		}

		if err := m.store.Upsert(ctx, sig); err != nil {
			return nil, err
		}
		if from != sig.Lifecycle {
			m.recordTransition(from, sig.Lifecycle)
		}
		touched = append(touched, sig)
	}

	return touched, nil
}
