// Package pipeline wires RuleEngine -> ConfidenceScorer -> LifecycleManager
// -> Dispatcher into the single "run rules" operation the scheduler and the
// cobra CLI both invoke, grounded in the teacher's scan pipeline orchestration
// in cmd/cryptorun/scan_main.go (one function strings the stage outputs
// together, no stage reaches past its neighbor).
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/signalgraph/internal/application/confidence"
	"github.com/sawpanic/signalgraph/internal/application/lifecycle"
	"github.com/sawpanic/signalgraph/internal/application/rules"
	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/dispatch"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/domain/signals"
	"github.com/sawpanic/signalgraph/internal/metrics"
)

// SnapshotStore is the minimal read surface this stage needs.
type SnapshotStore interface {
	GetLatest(ctx context.Context, window graph.Window) (*graph.Snapshot, error)
	List(ctx context.Context, window graph.Window, limit int) ([]graph.Snapshot, error)
}

// RuleRunner strings together one rule-engine run for a window: detect,
// score, apply lifecycle, dispatch.
type RuleRunner struct {
	snapshots  SnapshotStore
	engine     *rules.Engine
	scorer     *confidence.Scorer
	lifecycle  *lifecycle.Manager
	dispatcher dispatch.Dispatcher
	metrics    *metrics.Registry
	log        zerolog.Logger
}

// NewRuleRunner constructs a RuleRunner. metrics may be nil to disable
// publishing (logging always happens regardless).
func NewRuleRunner(snapshots SnapshotStore, engine *rules.Engine, scorer *confidence.Scorer,
	lc *lifecycle.Manager, dispatcher dispatch.Dispatcher, m *metrics.Registry, log zerolog.Logger) *RuleRunner {
	return &RuleRunner{snapshots: snapshots, engine: engine, scorer: scorer, lifecycle: lc, dispatcher: dispatcher, metrics: m, log: log}
}

// RunResult summarizes one pass for logging/CLI output.
type RunResult struct {
	RunID      string
	Candidates int
	Signals    []signals.Signal
	Dispatched dispatch.Result
}

// Run loads the two most recent snapshots for window, runs the detector set,
// scores and lifecycle-applies every candidate, then dispatches whatever
// comes out Dispatchable.
func (r *RuleRunner) Run(ctx context.Context, window graph.Window, thresholds config.RuleThresholds, now time.Time) (RunResult, error) {
	runID := uuid.NewString()

	recent, err := r.snapshots.List(ctx, window, 2)
	if err != nil {
		return RunResult{RunID: runID}, err
	}
	var current, previous *graph.Snapshot
	if len(recent) > 0 {
		current = &recent[0]
	}
	if len(recent) > 1 {
		previous = &recent[1]
	}
	if current == nil {
		r.log.Warn().Str("window", string(window)).Msg("no snapshot available, skipping rule run")
		return RunResult{RunID: runID}, nil
	}

	candidates := r.engine.Detect(rules.Context{
		Current:    current,
		Previous:   previous,
		Thresholds: thresholds,
		Window:     string(window),
	})

	triggers := make([]lifecycle.Trigger, 0, len(candidates))
	for _, cand := range candidates {
		actors := clusterInputsFor(current, cand.PrimaryActorIDs)
		result := r.scorer.Score(confidence.Input{
			Candidate:   cand,
			Actors:      actors,
			CoveragePct: current.Coverage.ActorsCoveragePct,
			Now:         now,
		})
		if r.metrics != nil {
			r.metrics.SignalsTotal.WithLabelValues(string(cand.Type), string(cand.Severity)).Inc()
		}
		triggers = append(triggers, lifecycle.Trigger{
			Key:             cand.SignalKey,
			Candidate:       cand,
			ConfidenceScore: result.Score,
			Label:           result.Label,
			Trace:           result.Trace,
		})
	}

	touched, err := r.lifecycle.Apply(ctx, string(window), now, triggers)
	if err != nil {
		return RunResult{RunID: runID, Candidates: len(candidates)}, err
	}

	dispatchable := make([]signals.Signal, 0, len(touched))
	for _, sig := range touched {
		if sig.Dispatchable() {
			dispatchable = append(dispatchable, sig)
		}
	}

	var dispatched dispatch.Result
	if r.dispatcher != nil && len(dispatchable) > 0 {
		dispatched = r.dispatcher.Dispatch(ctx, dispatchable)
		if r.metrics != nil {
			for range dispatched.Sent {
				r.metrics.DispatchSent.WithLabelValues("default").Inc()
			}
			for range dispatched.Failed {
				r.metrics.DispatchFailed.WithLabelValues("default").Inc()
			}
		}
	}

	r.log.Info().Str("run_id", runID).Str("window", string(window)).
		Int("candidates", len(candidates)).Int("signals", len(touched)).
		Int("dispatched", len(dispatched.Sent)).Msg("rule run completed")

	return RunResult{RunID: runID, Candidates: len(candidates), Signals: touched, Dispatched: dispatched}, nil
}

func clusterInputsFor(snap *graph.Snapshot, actorIDs []string) []signals.ClusterInput {
	out := make([]signals.ClusterInput, 0, len(actorIDs))
	for _, id := range actorIDs {
		a, ok := snap.Actors[id]
		if !ok {
			continue
		}
		out = append(out, signals.ClusterInput{
			ActorID:          a.ActorID,
			Type:             a.Type,
			EntityID:         a.EntityID,
			OwnerID:          a.OwnerID,
			CommunityID:      a.CommunityID,
			InfrastructureID: a.InfrastructureID,
			Weight:           a.FlowShare,
		})
	}
	return out
}
