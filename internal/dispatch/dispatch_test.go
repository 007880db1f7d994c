package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func highMediumSignal(key string) signals.Signal {
	return signals.Signal{
		SignalKey: signals.SignalKey(key),
		Severity:  signals.SeverityHigh,
		Label:     signals.LabelMedium,
	}
}

func TestInMemory_RecordsDispatchedSignals(t *testing.T) {
	m := NewInMemory()
	sigs := []signals.Signal{highMediumSignal("a"), highMediumSignal("b")}

	res := m.Dispatch(context.Background(), sigs)
	require.Len(t, res.Sent, 2)
	assert.Empty(t, res.Failed)
	assert.Len(t, m.Sent(), 2)
}

type fakeDialer struct {
	conn Conn
	err  error
}

func (f *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

type fakeConn struct {
	written  []interface{}
	writeErr error
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func TestWSDispatcher_SendsEnvelopePerSignal(t *testing.T) {
	conn := &fakeConn{}
	d := newWSDispatcher("ws://example/notify", &fakeDialer{conn: conn}, testLogger())

	res := d.Dispatch(context.Background(), []signals.Signal{highMediumSignal("x")})
	require.Len(t, res.Sent, 1)
	assert.Len(t, conn.written, 1)
}

func TestWSDispatcher_DialFailureRecordsPerSignalFailure(t *testing.T) {
	d := newWSDispatcher("ws://example/notify", &fakeDialer{err: errors.New("connection refused")}, testLogger())

	res := d.Dispatch(context.Background(), []signals.Signal{highMediumSignal("x")})
	assert.Empty(t, res.Sent)
	assert.Contains(t, res.Failed, signals.SignalKey("x"))
}

func TestWSDispatcher_BreakerTripsAfterConsecutiveDialFailures(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	d := newWSDispatcher("ws://example/notify", dialer, testLogger())

	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), []signals.Signal{highMediumSignal("x")})
	}
	res := d.Dispatch(context.Background(), []signals.Signal{highMediumSignal("x")})
	assert.Contains(t, res.Failed, signals.SignalKey("x"))
	assert.ErrorIs(t, res.Failed[signals.SignalKey("x")], gobreaker.ErrOpenState)
}
