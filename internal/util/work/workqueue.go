package work

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueClosed = errors.New("work queue closed")
	ErrQueueFull   = errors.New("work queue full")
)

// Handler processes one work item. A non-nil error triggers a retry
// when the item still has attempts left.
type Handler[T any] func(item T) error

type workItem[T any] struct {
	data       T
	retries    int
	maxRetries int
}

// Queue is a bounded background work queue with per-item retries and a
// fixed worker pool. It backs fire-and-forget jobs such as artifact
// persistence.
type Queue[T any] struct {
	items   chan workItem[T]
	handler Handler[T]
	backoff time.Duration

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewQueue starts numWorkers workers draining the queue.
func NewQueue[T any](numWorkers, capacity int, handler Handler[T]) *Queue[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if capacity <= 0 {
		capacity = 64
	}
	q := &Queue[T]{
		items:   make(chan workItem[T], capacity),
		handler: handler,
		backoff: time.Second,
	}
	q.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues an item without retries.
func (q *Queue[T]) Submit(data T) error {
	return q.SubmitWithRetries(data, 0)
}

// SubmitWithRetries enqueues an item that will be re-run up to
// maxRetries times on handler failure. The send happens under the same
// lock Stop closes the channel under, so it can never hit a closed
// channel.
func (q *Queue[T]) SubmitWithRetries(data T, maxRetries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueClosed
	}

	select {
	case q.items <- workItem[T]{data: data, maxRetries: maxRetries}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains the queue and waits for workers to finish.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.items)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for item := range q.items {
		q.process(item)
	}
}

func (q *Queue[T]) process(item workItem[T]) {
	for {
		if err := q.handler(item.data); err == nil {
			return
		}
		item.retries++
		if item.retries > item.maxRetries {
			return
		}
		backoff := time.Duration(item.retries) * q.backoff
		if backoff > time.Minute {
			backoff = time.Minute
		}
		time.Sleep(backoff)
	}
}
