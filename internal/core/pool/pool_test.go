package pool

import (
	"context"
	"testing"
	"time"

	"eloquence-server-go/internal/platform/errors"
)

func TestAcquireCreatesLazily(t *testing.T) {
	created := 0
	p := New(2, time.Second, func() (int, error) {
		created++
		return created, nil
	})

	a, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if created != 2 || a == b {
		t.Fatalf("expected two distinct resources, got %d/%d (created=%d)", a, b, created)
	}
}

func TestAcquireReusesReleased(t *testing.T) {
	created := 0
	p := New(1, time.Second, func() (int, error) {
		created++
		return created, nil
	})

	res, _ := p.Acquire(context.Background())
	p.Release(res)
	again, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if created != 1 || again != res {
		t.Fatalf("released resource should be reused")
	}
}

func TestAcquireOverloadedAfterWait(t *testing.T) {
	p := New(1, 50*time.Millisecond, func() (int, error) { return 1, nil })
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	_, err := p.Acquire(context.Background())
	if !errors.IsKind(err, errors.KindOverloaded) {
		t.Fatalf("expected overloaded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("acquire gave up too early: %v", elapsed)
	}
}

func TestAcquireUnblocksOnRelease(t *testing.T) {
	p := New(1, time.Second, func() (int, error) { return 7, nil })
	res, _ := p.Acquire(context.Background())

	done := make(chan int, 1)
	go func() {
		r, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("Acquire failed: %v", err)
		}
		done <- r
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(res)

	select {
	case r := <-done:
		if r != 7 {
			t.Fatalf("unexpected resource %d", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter never unblocked")
	}
}

func TestAcquireCancelled(t *testing.T) {
	p := New(1, time.Minute, func() (int, error) { return 1, nil })
	_, _ = p.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := p.Acquire(ctx); !errors.IsKind(err, errors.KindCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestCloseDrainsIdle(t *testing.T) {
	p := New(2, time.Second, func() (int, error) { return 1, nil })
	res, _ := p.Acquire(context.Background())
	p.Release(res)

	var drained int
	p.Close(func(int) { drained++ })
	if drained != 1 {
		t.Fatalf("expected 1 drained resource, got %d", drained)
	}
	if _, err := p.Acquire(context.Background()); !errors.IsKind(err, errors.KindInternal) {
		t.Fatalf("acquire on closed pool must fail, got %v", err)
	}
}
