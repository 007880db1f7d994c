package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/logging"
	"github.com/sawpanic/signalgraph/internal/pipelineerr"
)

type fakeSource struct {
	transfers []graph.Transfer
	err       error
}

func (f *fakeSource) List(ctx context.Context, chain string, from, to time.Time) ([]graph.Transfer, error) {
	return f.transfers, f.err
}

type fakeStore struct {
	snaps  []graph.Snapshot
	latest map[graph.Window]*graph.Snapshot
}

func newFakeStore() *fakeStore { return &fakeStore{latest: map[graph.Window]*graph.Snapshot{}} }

func (s *fakeStore) Put(ctx context.Context, snap graph.Snapshot) error {
	s.snaps = append(s.snaps, snap)
	cp := snap
	s.latest[snap.Window] = &cp
	return nil
}
func (s *fakeStore) GetLatest(ctx context.Context, window graph.Window) (*graph.Snapshot, error) {
	return s.latest[window], nil
}
func (s *fakeStore) List(ctx context.Context, window graph.Window, limit int) ([]graph.Snapshot, error) {
	return s.snaps, nil
}
func (s *fakeStore) GetByID(ctx context.Context, id string) (*graph.Snapshot, error) {
	for _, sn := range s.snaps {
		if sn.SnapshotID == id {
			return &sn, nil
		}
	}
	return nil, nil
}

type identityActors struct{}

func (identityActors) Resolve(address string) ActorInfo {
	return ActorInfo{ActorID: address, Type: graph.ActorTrader}
}

func TestBuildSnapshot_AggregatesFlowsAndEdges(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{transfers: []graph.Transfer{
		{Chain: "eth", TxHash: "0x1", From: "A", To: "B", AmountUSD: 1000, Timestamp: now.Add(-time.Minute), FromAttribution: "verified", ToAttribution: "verified"},
		{Chain: "eth", TxHash: "0x2", From: "A", To: "B", AmountUSD: 2000, Timestamp: now.Add(-time.Minute), FromAttribution: "verified", ToAttribution: "weak"},
		{Chain: "eth", TxHash: "0x3", From: "B", To: "C", AmountUSD: 500, Timestamp: now.Add(-time.Second * 30), FromAttribution: "verified", ToAttribution: "verified"},
	}}
	store := newFakeStore()
	b := New(source, store, nil, identityActors{}, []string{"eth"}, logging.New("error", nil))

	snap, err := b.Build(context.Background(), graph.Window1h, now)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Coverage.TransfersTotal)
	assert.Equal(t, 2, snap.Coverage.TransfersStrong) // tx1 and tx3 fully strong; tx2 is weak on one side

	edgeAB, ok := snap.Edges[graph.NewEdgeID("A", "B")]
	require.True(t, ok)
	assert.Equal(t, 2, edgeAB.EvidenceCount)
	assert.InDelta(t, 3000, edgeAB.MagnitudeUSD, 0.01)

	actorA := snap.Actors["A"]
	assert.InDelta(t, 3000, actorA.OutflowUSD, 0.01)
	assert.Equal(t, 1, actorA.CounterpartyCount)

	// content-addressing: identical input -> identical id
	store2 := newFakeStore()
	b2 := New(source, store2, nil, identityActors{}, []string{"eth"}, logging.New("error", nil))
	snap2, err := b2.Build(context.Background(), graph.Window1h, now)
	require.NoError(t, err)
	assert.Equal(t, snap.SnapshotID, snap2.SnapshotID)
}

func TestBuildSnapshot_FailsWithoutPartialPublish(t *testing.T) {
	source := &fakeSource{err: errors.New("rpc down")}
	store := newFakeStore()
	b := New(source, store, nil, identityActors{}, []string{"eth"}, logging.New("error", nil))

	_, err := b.Build(context.Background(), graph.Window1h, time.Now())
	require.Error(t, err)
	assert.True(t, pipelineerr.Is(err, pipelineerr.KindInputMissing))
	assert.Empty(t, store.snaps)
}

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, graph.TrendStable, classifyTrend(100, 105))
	assert.Equal(t, graph.TrendIncreasing, classifyTrend(100, 150))
	assert.Equal(t, graph.TrendDecreasing, classifyTrend(100, 50))
}
