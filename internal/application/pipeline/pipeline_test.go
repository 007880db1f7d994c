package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/application/confidence"
	"github.com/sawpanic/signalgraph/internal/application/lifecycle"
	"github.com/sawpanic/signalgraph/internal/application/rules"
	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/dispatch"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/domain/signals"
	"github.com/sawpanic/signalgraph/internal/logging"
)

type fakeSnapshotStore struct {
	snaps []graph.Snapshot
}

func (s *fakeSnapshotStore) GetLatest(ctx context.Context, window graph.Window) (*graph.Snapshot, error) {
	if len(s.snaps) == 0 {
		return nil, nil
	}
	cp := s.snaps[0]
	return &cp, nil
}

func (s *fakeSnapshotStore) List(ctx context.Context, window graph.Window, limit int) ([]graph.Snapshot, error) {
	if len(s.snaps) > limit {
		return s.snaps[:limit], nil
	}
	return s.snaps, nil
}

type fakeLifecycleStore struct {
	byKey map[signals.SignalKey]signals.Signal
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{byKey: map[signals.SignalKey]signals.Signal{}}
}

func (s *fakeLifecycleStore) Get(ctx context.Context, key signals.SignalKey) (*signals.Signal, error) {
	sig, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := sig
	return &cp, nil
}

func (s *fakeLifecycleStore) Upsert(ctx context.Context, sig signals.Signal) error {
	s.byKey[sig.SignalKey] = sig
	return nil
}

func (s *fakeLifecycleStore) ListLive(ctx context.Context, window string) ([]signals.Signal, error) {
	var out []signals.Signal
	for _, sig := range s.byKey {
		if sig.Window == window && (sig.Lifecycle == signals.LifecycleActive || sig.Lifecycle == signals.LifecycleCooldown) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func thresholdsForHighSeverityScenario() config.RuleThresholds {
	return config.RuleThresholds{
		MinDensity:       10,
		HighDensity:      40,
		MinWeight:        0.5,
		MinConfidence:    0.7,
		HighConfidence:   0.75,
		CoverageRequired: 0.6,
		MaxSignalsPerRun: 200,
	}
}

func triggeringSnapshot() graph.Snapshot {
	edgeID := graph.NewEdgeID("A", "B")
	return graph.Snapshot{
		Window: graph.Window7d,
		Actors: map[string]graph.Actor{
			"A": {ActorID: "A", Coverage: 0.9, IsExchangeOrMM: true, FlowShare: 0.7},
			"B": {ActorID: "B", Coverage: 0.9, IsExchangeOrMM: true, FlowShare: 0.7},
		},
		Edges: map[graph.EdgeID]graph.Edge{
			edgeID: {ID: edgeID, EvidenceCount: 50, Weight: 0.8, Confidence: 0.75, AvgCoverage: 0.9},
		},
		Coverage: graph.Coverage{ActorsCoveragePct: 90},
	}
}

func TestRuleRunner_DetectsScoresAndDispatchesHighSeveritySignal(t *testing.T) {
	store := &fakeSnapshotStore{snaps: []graph.Snapshot{triggeringSnapshot()}}
	scorer := confidence.New(config.DefaultConfidenceWeights(), config.DefaultConfidenceThresholds(), config.DefaultClusterPolicy(), 72)
	lcMgr := lifecycle.New(newFakeLifecycleStore(), config.LifecycleConfig{CooldownAfterRuns: 3, ResolveAfterRuns: 4, MinConfidence: 40, DecayHalfLifeHrs: 72}, logging.New("error", nil))
	sink := dispatch.NewInMemory()

	runner := NewRuleRunner(store, rules.New(), scorer, lcMgr, sink, nil, logging.New("error", nil))

	result, err := runner.Run(context.Background(), graph.Window7d, thresholdsForHighSeverityScenario(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, signals.LifecycleActive, result.Signals[0].Lifecycle)
	assert.Len(t, result.Dispatched.Sent, 1)
}

func TestRuleRunner_NoSnapshotSkipsRunWithoutError(t *testing.T) {
	store := &fakeSnapshotStore{}
	scorer := confidence.New(config.DefaultConfidenceWeights(), config.DefaultConfidenceThresholds(), config.DefaultClusterPolicy(), 72)
	lcMgr := lifecycle.New(newFakeLifecycleStore(), config.LifecycleConfig{CooldownAfterRuns: 3, ResolveAfterRuns: 4, MinConfidence: 40, DecayHalfLifeHrs: 72}, logging.New("error", nil))

	runner := NewRuleRunner(store, rules.New(), scorer, lcMgr, dispatch.NewInMemory(), nil, logging.New("error", nil))

	result, err := runner.Run(context.Background(), graph.Window7d, thresholdsForHighSeverityScenario(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)
}
