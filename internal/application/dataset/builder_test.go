package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

type fakeStore struct {
	samples map[string]ranking.LearningSample
}

func newFakeStore() *fakeStore { return &fakeStore{samples: map[string]ranking.LearningSample{}} }

func (s *fakeStore) HasSample(ctx context.Context, id string) (bool, error) {
	_, ok := s.samples[id]
	return ok, nil
}

func (s *fakeStore) Upsert(ctx context.Context, sample ranking.LearningSample) error {
	s.samples[sample.SampleID] = sample
	return nil
}

func TestScenario6_NoAttributionLink(t *testing.T) {
	store := newFakeStore()
	b := New(store)
	entity := ranking.Entity{Address: "0xabc"}

	sample, reason, err := b.Build(context.Background(), ModeIncremental, Input{
		SnapshotID: "snap1",
		Horizon:    ranking.Horizon1d,
		Entity:     entity,
		Trend:      &ranking.TrendValidation{Label: ranking.TrendUp},
		Link:       nil,
	}, time.Now())

	require.NoError(t, err)
	assert.Nil(t, sample)
	assert.Equal(t, ReasonNoAttributionLink, reason)
	assert.Empty(t, store.samples)
}

func TestScenario6_UpsertsOnceLinkArrivesAndTrainEligible(t *testing.T) {
	store := newFakeStore()
	b := New(store)
	entity := ranking.Entity{Address: "0xabc"}
	link := &ranking.AttributionOutcomeLink{SnapshotID: "snap1", Entity: entity, Horizon: ranking.Horizon1d}

	sample, reason, err := b.Build(context.Background(), ModeIncremental, Input{
		SnapshotID: "snap1",
		Horizon:    ranking.Horizon1d,
		Entity:     entity,
		Trend:      &ranking.TrendValidation{Label: ranking.TrendUp},
		Link:       link,
		Drift:      ranking.DriftNone,
	}, time.Now())

	require.NoError(t, err)
	require.Empty(t, reason)
	require.NotNil(t, sample)
	assert.True(t, sample.TrainEligible)
}

func TestCriticalDrift_NotTrainEligibleUnlessIncluded(t *testing.T) {
	store := newFakeStore()
	b := New(store)
	entity := ranking.Entity{Address: "0xabc"}
	link := &ranking.AttributionOutcomeLink{SnapshotID: "snap1", Entity: entity, Horizon: ranking.Horizon1d}

	sample, _, err := b.Build(context.Background(), ModeIncremental, Input{
		SnapshotID: "snap1",
		Horizon:    ranking.Horizon1d,
		Entity:     entity,
		Trend:      &ranking.TrendValidation{Label: ranking.TrendUp},
		Link:       link,
		Drift:      ranking.DriftCritical,
	}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.False(t, sample.TrainEligible)

	sample2, _, err := b.Build(context.Background(), ModeFull, Input{
		SnapshotID:           "snap1",
		Horizon:              ranking.Horizon1d,
		Entity:               entity,
		Trend:                &ranking.TrendValidation{Label: ranking.TrendUp},
		Link:                 link,
		Drift:                ranking.DriftCritical,
		IncludeCriticalDrift: true,
	}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, sample2)
	assert.True(t, sample2.TrainEligible)
}

func TestIncrementalMode_SkipsAlreadyMaterialized(t *testing.T) {
	store := newFakeStore()
	b := New(store)
	entity := ranking.Entity{Address: "0xabc"}
	link := &ranking.AttributionOutcomeLink{SnapshotID: "snap1", Entity: entity, Horizon: ranking.Horizon1d}
	in := Input{SnapshotID: "snap1", Horizon: ranking.Horizon1d, Entity: entity, Trend: &ranking.TrendValidation{Label: ranking.TrendUp}, Link: link}

	_, reason, err := b.Build(context.Background(), ModeIncremental, in, time.Now())
	require.NoError(t, err)
	require.Empty(t, reason)

	_, reason2, err := b.Build(context.Background(), ModeIncremental, in, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyMaterialized, reason2)
}
