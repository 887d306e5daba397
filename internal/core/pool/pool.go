package pool

import (
	"context"
	"sync"
	"time"

	"eloquence-server-go/internal/platform/errors"
)

// Factory creates one pooled resource.
type Factory[T any] func() (T, error)

// Pool bounds concurrent use of an expensive resource such as an
// upstream client slot. Acquire waits a limited time when the pool is
// exhausted, then fails with KindOverloaded so the caller can shed load
// instead of queueing without bound.
type Pool[T any] struct {
	factory Factory[T]
	idle    chan T
	max     int
	wait    time.Duration

	mu      sync.Mutex
	created int
	closed  bool
}

// New builds a pool of at most max resources, created lazily.
func New[T any](max int, wait time.Duration, factory Factory[T]) *Pool[T] {
	if max <= 0 {
		max = 1
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Pool[T]{
		factory: factory,
		idle:    make(chan T, max),
		max:     max,
		wait:    wait,
	}
}

// Acquire returns a resource, creating one when under the cap.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	const op = "pool.acquire"
	var zero T

	select {
	case res := <-p.idle:
		return res, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, errors.New(errors.KindInternal, op, "pool closed")
	}
	if p.created < p.max {
		p.created++
		p.mu.Unlock()
		res, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return zero, errors.Wrap(errors.KindUpstream, op, "resource creation failed", err)
		}
		return res, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.wait)
	defer timer.Stop()

	select {
	case res := <-p.idle:
		return res, nil
	case <-timer.C:
		return zero, errors.New(errors.KindOverloaded, op, "no resource available")
	case <-ctx.Done():
		return zero, errors.Wrap(errors.KindCancelled, op, "acquire cancelled", ctx.Err())
	}
}

// Release returns a resource to the pool.
func (p *Pool[T]) Release(res T) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	select {
	case p.idle <- res:
	default:
	}
}

// Discard drops a broken resource, freeing its slot.
func (p *Pool[T]) Discard() {
	p.mu.Lock()
	if p.created > 0 {
		p.created--
	}
	p.mu.Unlock()
}

// Close marks the pool closed and drains idle resources through fn.
func (p *Pool[T]) Close(fn func(T)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case res := <-p.idle:
			if fn != nil {
				fn(res)
			}
		default:
			return
		}
	}
}

// InUse reports how many resources exist outside the idle set.
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created - len(p.idle)
}
