// Package dispatch implements the Dispatcher boundary of §6: push
// dispatchable signals to an external notification channel. The core never
// depends on a concrete transport, only this interface (spec.md's Non-goal
// excludes live notification transport beyond this contract).
package dispatch

import (
	"context"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

// Result reports per-signal outcomes of one dispatch call.
type Result struct {
	Sent   []signals.SignalKey
	Failed map[signals.SignalKey]error
}

// Dispatcher pushes dispatchable signals to a notification channel. Callers
// are expected to pre-filter with Signal.Dispatchable(); implementations may
// re-check it defensively but never relax it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sigs []signals.Signal) Result
}

// NewResult builds an empty Result ready for accumulation.
func NewResult() Result {
	return Result{Failed: map[signals.SignalKey]error{}}
}
