package work

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueProcessesItems(t *testing.T) {
	var sum atomic.Int64
	q := NewQueue[int](2, 16, func(n int) error {
		sum.Add(int64(n))
		return nil
	})

	for i := 1; i <= 5; i++ {
		if err := q.Submit(i); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	q.Stop()

	if sum.Load() != 15 {
		t.Fatalf("expected all items processed, sum=%d", sum.Load())
	}
}

func TestQueueRetries(t *testing.T) {
	var attempts atomic.Int32
	q := NewQueue[string](1, 4, func(string) error {
		if attempts.Add(1) < 3 {
			return ErrQueueFull
		}
		return nil
	})
	q.backoff = time.Millisecond

	if err := q.SubmitWithRetries("x", 5); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	q.Stop()

	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	q := NewQueue[string](1, 4, func(string) error {
		attempts.Add(1)
		return ErrQueueFull
	})
	q.backoff = time.Millisecond

	if err := q.SubmitWithRetries("x", 2); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	q.Stop()

	if attempts.Load() != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", attempts.Load())
	}
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue[int](1, 4, func(int) error { return nil })
	q.Stop()
	if err := q.Submit(1); err != ErrQueueClosed {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueSubmitDuringStop(t *testing.T) {
	q := NewQueue[int](2, 16, func(int) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if err := q.Submit(j); err == ErrQueueClosed {
					return
				}
			}
		}()
	}
	q.Stop()
	wg.Wait()

	if err := q.Submit(1); err != ErrQueueClosed {
		t.Fatalf("expected ErrQueueClosed after Stop, got %v", err)
	}
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue[int](1, 1, func(int) error {
		<-block
		return nil
	})
	defer func() {
		close(block)
		q.Stop()
	}()

	// First item occupies the worker, second fills the buffer.
	if err := q.Submit(1); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := q.Submit(2); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := q.Submit(3); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
