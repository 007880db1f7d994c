package dispatch

import (
	"context"
	"sync"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

// InMemory records every dispatched signal, for tests and local runs that
// have no external notification channel configured.
type InMemory struct {
	mu   sync.Mutex
	sent []signals.Signal
}

// NewInMemory constructs an InMemory dispatcher.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Dispatch never fails; it is a recording sink only.
func (m *InMemory) Dispatch(ctx context.Context, sigs []signals.Signal) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sigs...)

	res := NewResult()
	for _, s := range sigs {
		res.Sent = append(res.Sent, s.SignalKey)
	}
	return res
}

// Sent returns every signal recorded so far, for assertions in tests.
func (m *InMemory) Sent() []signals.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]signals.Signal, len(m.sent))
	copy(out, m.sent)
	return out
}
