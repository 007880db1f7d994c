package transfersource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

type fakeSource struct {
	err    error
	result []graph.Transfer
	calls  int
}

func (f *fakeSource) List(ctx context.Context, chain string, from, to time.Time) ([]graph.Transfer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	cfg.BreakerConsecutiveTrips = 3
	cfg.BreakerTimeout = 50 * time.Millisecond
	return cfg
}

func TestList_PassesThroughOnSuccess(t *testing.T) {
	fake := &fakeSource{result: []graph.Transfer{{Chain: "ethereum", TxHash: "0xabc"}}}
	g := New(fake, testConfig())

	out, err := g.List(context.Background(), "ethereum", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "0xabc", out[0].TxHash)
}

func TestList_BreakerTripsAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeSource{err: errors.New("upstream unavailable")}
	g := New(fake, testConfig())

	for i := 0; i < 3; i++ {
		_, err := g.List(context.Background(), "ethereum", time.Now().Add(-time.Hour), time.Now())
		assert.Error(t, err)
	}

	callsBeforeTrip := fake.calls
	_, err := g.List(context.Background(), "ethereum", time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
	// Once open, the breaker rejects without reaching the underlying source.
	assert.Equal(t, callsBeforeTrip, fake.calls)
}
