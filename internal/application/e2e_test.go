package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/application/confidence"
	"github.com/sawpanic/signalgraph/internal/application/dataset"
	"github.com/sawpanic/signalgraph/internal/application/lifecycle"
	"github.com/sawpanic/signalgraph/internal/application/outcome"
	"github.com/sawpanic/signalgraph/internal/application/rankingengine"
	"github.com/sawpanic/signalgraph/internal/application/rules"
	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/domain/ranking"
	"github.com/sawpanic/signalgraph/internal/domain/signals"
	"github.com/sawpanic/signalgraph/internal/logging"
)

// fakeSignalStore is the in-memory lifecycle.Store used to chain a rule run
// into lifecycle application without a database.
type fakeSignalStore struct {
	byKey map[signals.SignalKey]signals.Signal
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{byKey: map[signals.SignalKey]signals.Signal{}}
}

func (s *fakeSignalStore) Get(ctx context.Context, key signals.SignalKey) (*signals.Signal, error) {
	sig, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := sig
	return &cp, nil
}

func (s *fakeSignalStore) Upsert(ctx context.Context, sig signals.Signal) error {
	s.byKey[sig.SignalKey] = sig
	return nil
}

func (s *fakeSignalStore) ListLive(ctx context.Context, window string) ([]signals.Signal, error) {
	var out []signals.Signal
	for _, sig := range s.byKey {
		if sig.Window == window && (sig.Lifecycle == signals.LifecycleActive || sig.Lifecycle == signals.LifecycleCooldown) {
			out = append(out, sig)
		}
	}
	return out, nil
}

// fakePriceLookup resolves fixed prices so realized return is deterministic.
type fakePriceLookup struct {
	atDecision, atResolve float64
}

func (f *fakePriceLookup) PriceAt(ctx context.Context, entity ranking.Entity, at time.Time) (float64, error) {
	if at.Before(time.Now().Add(-12 * time.Hour)) {
		return f.atDecision, nil
	}
	return f.atResolve, nil
}

// fakeDatasetStore is the in-memory dataset.Store counterpart of
// postgres.DatasetRepo for composing a full pipeline run without a database.
type fakeDatasetStore struct {
	samples map[string]ranking.LearningSample
}

func newFakeDatasetStore() *fakeDatasetStore {
	return &fakeDatasetStore{samples: map[string]ranking.LearningSample{}}
}

func (s *fakeDatasetStore) HasSample(ctx context.Context, sampleID string) (bool, error) {
	_, ok := s.samples[sampleID]
	return ok, nil
}

func (s *fakeDatasetStore) Upsert(ctx context.Context, sample ranking.LearningSample) error {
	s.samples[sample.SampleID] = sample
	return nil
}

func ruleThresholdsForScenario1() config.RuleThresholds {
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

// TestEndToEnd_NewCorridorFlowsThroughRankingAndDataset composes spec.md §8
// scenario 1 (new corridor, high severity) all the way through ranking,
// outcome resolution and dataset materialization, demonstrating that every
// stage's output is consumable by the next without adaptation glue beyond
// what each package already exposes.
func TestEndToEnd_NewCorridorFlowsThroughRankingAndDataset(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	log := logging.New("error", nil)

	edgeID := graph.NewEdgeID("A", "B")
	current := &graph.Snapshot{
		SnapshotID: "snap-1",
		Window:     graph.Window7d,
		Actors: map[string]graph.Actor{
			"A": {ActorID: "A", Coverage: 0.9, IsExchangeOrMM: true, FlowShare: 0.7},
			"B": {ActorID: "B", Coverage: 0.9, IsExchangeOrMM: true, FlowShare: 0.7},
		},
		Edges: map[graph.EdgeID]graph.Edge{
			edgeID: {ID: edgeID, EvidenceCount: 50, Weight: 0.8, Confidence: 0.75, AvgCoverage: 0.9},
		},
		Coverage: graph.Coverage{ActorsCoveragePct: 90},
	}

	// RuleEngine: detect the new corridor.
	engine := rules.New()
	candidates := engine.Detect(rules.Context{Current: current, Previous: nil, Thresholds: ruleThresholdsForScenario1(), Window: "7d"})
	require.Len(t, candidates, 1)
	cand := candidates[0]
	assert.Equal(t, signals.RuleNewCorridor, cand.Type)
	assert.Equal(t, signals.SeverityHigh, cand.Severity)

	// ConfidenceScorer: score the sole candidate.
	scorer := confidence.New(config.DefaultConfidenceWeights(), config.DefaultConfidenceThresholds(), config.DefaultClusterPolicy(), 72)
	actorInputs := []signals.ClusterInput{
		{ActorID: "A", Weight: 0.7},
		{ActorID: "B", Weight: 0.7},
	}
	scoreResult := scorer.Score(confidence.Input{
		Candidate:   cand,
		Actors:      actorInputs,
		CoveragePct: current.Coverage.ActorsCoveragePct,
		Now:         now,
	})
	assert.Equal(t, signals.LabelHigh, scoreResult.Label)

	// LifecycleManager: apply the trigger, expect NEW->ACTIVE in one run.
	store := newFakeSignalStore()
	lcMgr := lifecycle.New(store, config.DefaultLifecycleConfig(), logging.Component(log, "lifecycle"))
	touched, err := lcMgr.Apply(ctx, "7d", now, []lifecycle.Trigger{
		{Key: cand.SignalKey, Candidate: cand, ConfidenceScore: scoreResult.Score, Label: scoreResult.Label, Trace: scoreResult.Trace},
	})
	require.NoError(t, err)
	require.Len(t, touched, 1)
	sig := touched[0]
	assert.Equal(t, signals.LifecycleActive, sig.Lifecycle)
	require.True(t, sig.Dispatchable())

	// RankingEngine: the corridor's primary entity gets ranked from a
	// positive actor signal driven by this run's confidence score.
	entity := ranking.Entity{Address: "A", ChainID: "ethereum"}
	rankEngine := rankingengine.New(config.DefaultRankingConfig())
	rankResult := rankEngine.Rank(entity, ranking.Inputs{
		MarketCapScore:   70,
		VolumeScore:      65,
		MomentumScore:    60,
		EngineConfidence: sig.ConfidenceScore,
		ActorSignalScore: 30,
		Risk:             20,
	}, ranking.Ranking{}, now)
	require.Equal(t, ranking.BucketBuy, rankResult.Ranking.Bucket)

	// OutcomeTracker: resolve the 1d horizon once elapsed, from a ranking
	// decision made 25h ago.
	decidedAt := now.Add(-25 * time.Hour)
	prices := &fakePriceLookup{atDecision: 100, atResolve: 110}
	tracker := outcome.New(prices)
	obs, err := tracker.Resolve(ctx, current.SnapshotID, entity, rankResult.Ranking.Bucket, decidedAt, ranking.Horizon1d, now)
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.InDelta(t, 10.0, obs.ReturnPct, 0.01)

	// DatasetBuilder: materialize a learning sample now that a trend
	// validation and attribution link both exist.
	trend := ranking.TrendValidation{SnapshotID: current.SnapshotID, Entity: entity, Horizon: ranking.Horizon1d, Label: ranking.TrendUp}
	link := ranking.AttributionOutcomeLink{SnapshotID: current.SnapshotID, Entity: entity, Horizon: ranking.Horizon1d, DecisionBucket: rankResult.Ranking.Bucket, Outcome: *obs}

	dsStore := newFakeDatasetStore()
	dsBuilder := dataset.New(dsStore)
	sample, reason, err := dsBuilder.Build(ctx, dataset.ModeIncremental, dataset.Input{
		SnapshotID: current.SnapshotID,
		Horizon:    ranking.Horizon1d,
		Entity:     entity,
		Trend:      &trend,
		Link:       &link,
		Drift:      ranking.DriftNone,
		Features:   map[string]float64{"confidence": sig.ConfidenceScore},
		Labels:     map[string]float64{"return_pct": obs.ReturnPct},
	}, now)
	require.NoError(t, err)
	assert.Empty(t, reason)
	require.NotNil(t, sample)
	assert.True(t, sample.TrainEligible)
}

// TestEndToEnd_DatasetGateBlocksWithoutAttributionLink covers spec.md §8
// scenario 6: snapshot exists, no attribution link present.
func TestEndToEnd_DatasetGateBlocksWithoutAttributionLink(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	entity := ranking.Entity{Address: "A", ChainID: "ethereum"}

	dsStore := newFakeDatasetStore()
	dsBuilder := dataset.New(dsStore)

	sample, reason, err := dsBuilder.Build(ctx, dataset.ModeIncremental, dataset.Input{
		SnapshotID: "snap-1",
		Horizon:    ranking.Horizon1d,
		Entity:     entity,
		Trend:      &ranking.TrendValidation{SnapshotID: "snap-1", Entity: entity, Horizon: ranking.Horizon1d},
		Link:       nil,
	}, now)
	require.NoError(t, err)
	assert.Nil(t, sample)
	assert.Equal(t, dataset.ReasonNoAttributionLink, reason)
}
