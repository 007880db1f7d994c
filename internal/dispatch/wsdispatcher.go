package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

// Dialer opens a persistent connection to the notification endpoint; split
// out so tests can substitute a fake without a real socket.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is the minimal surface WSDispatcher needs from a socket connection.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// gorillaDialer dials a real gorilla/websocket connection, mirroring the
// teacher's venue WS adapters (kraken_adapter.go) but pushing instead of
// subscribing.
type gorillaDialer struct{}

func (gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// WSDispatcher pushes signal notifications over a persistent WebSocket,
// reconnecting lazily and tripping a circuit breaker on repeated dial
// failures so a dead notification endpoint doesn't stall every run.
type WSDispatcher struct {
	url    string
	dialer Dialer
	log    zerolog.Logger

	breaker *gobreaker.CircuitBreaker

	mu   sync.Mutex
	conn Conn
}

// NewWSDispatcher constructs a WSDispatcher against a real gorilla/websocket
// endpoint.
func NewWSDispatcher(url string, log zerolog.Logger) *WSDispatcher {
	return newWSDispatcher(url, gorillaDialer{}, log)
}

func newWSDispatcher(url string, dialer Dialer, log zerolog.Logger) *WSDispatcher {
	settings := gobreaker.Settings{
		Name:        "ws_dispatcher",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &WSDispatcher{url: url, dialer: dialer, log: log, breaker: gobreaker.NewCircuitBreaker(settings)}
}

type wsEnvelope struct {
	SignalKey string          `json:"signalKey"`
	Type      string          `json:"type"`
	Severity  string          `json:"severity"`
	Label     string          `json:"label"`
	Summary   signals.Summary `json:"summary"`
}

// Dispatch writes one JSON frame per signal over the shared connection,
// dialing lazily on first use or after a prior write closed it.
func (d *WSDispatcher) Dispatch(ctx context.Context, sigs []signals.Signal) Result {
	res := NewResult()
	for _, s := range sigs {
		if err := d.send(ctx, s); err != nil {
			d.log.Warn().Err(err).Str("signalKey", string(s.SignalKey)).Msg("ws dispatch failed")
			res.Failed[s.SignalKey] = err
			continue
		}
		res.Sent = append(res.Sent, s.SignalKey)
	}
	return res
}

func (d *WSDispatcher) send(ctx context.Context, s signals.Signal) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		conn, err := d.connection(ctx)
		if err != nil {
			return nil, err
		}
		env := wsEnvelope{
			SignalKey: string(s.SignalKey),
			Type:      string(s.Type),
			Severity:  string(s.Severity),
			Label:     string(s.Label),
			Summary:   s.Summary,
		}
		if err := conn.WriteJSON(env); err != nil {
			d.dropConnection()
			return nil, fmt.Errorf("ws write: %w", err)
		}
		return nil, nil
	})
	return err
}

func (d *WSDispatcher) connection(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := d.dialer.Dial(ctx, d.url)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *WSDispatcher) dropConnection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}
