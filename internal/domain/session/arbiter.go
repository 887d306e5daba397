package session

import (
	"context"
	"sync"
)

// Arbiter owns the interruption epoch of one session. Every turn runs
// under an epoch; barge-in or an explicit cancel bumps the epoch and
// cancels the running turn, which makes all of its in-flight output
// stale.
type Arbiter struct {
	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelCauseFunc
}

func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// Begin opens a new turn: the epoch advances and a fresh turn context
// is derived from parent. Any previous turn is cancelled first.
func (a *Arbiter) Begin(parent context.Context, cause error) (context.Context, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel(cause)
	}
	a.epoch++
	ctx, cancel := context.WithCancelCause(parent)
	a.cancel = cancel
	return ctx, a.epoch
}

// Interrupt cancels the running turn and advances the epoch without
// starting a new turn context.
func (a *Arbiter) Interrupt(cause error) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel(cause)
		a.cancel = nil
	}
	a.epoch++
	return a.epoch
}

// Epoch returns the current epoch.
func (a *Arbiter) Epoch() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch
}

// Stale reports whether output produced under epoch must be dropped.
func (a *Arbiter) Stale(epoch uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return epoch < a.epoch
}

// Stop cancels any running turn.
func (a *Arbiter) Stop(cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel(cause)
		a.cancel = nil
	}
}
