package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestIntervalFirstCallImmediate(t *testing.T) {
	i := NewInterval(5)
	start := time.Now()
	if err := i.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("first call should not be delayed")
	}
}

func TestIntervalSpacesCalls(t *testing.T) {
	i := &Interval{delay: 30 * time.Millisecond}
	start := time.Now()
	for n := 0; n < 3; n++ {
		if err := i.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", n, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("three calls finished in %v, want >= 60ms", elapsed)
	}
}

func TestIntervalQueuesConcurrentCallers(t *testing.T) {
	i := &Interval{delay: 25 * time.Millisecond}
	var wg sync.WaitGroup
	start := time.Now()
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := i.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
			}
		}()
	}
	wg.Wait()
	if elapsed := time.Since(start); elapsed < 75*time.Millisecond {
		t.Fatalf("four concurrent calls finished in %v, want >= 75ms", elapsed)
	}
}

func TestIntervalWaitCancel(t *testing.T) {
	i := &Interval{delay: time.Minute}
	if err := i.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- i.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled wait did not return")
	}
}

func TestLimiterAllowRefill(t *testing.T) {
	l := New()
	if !l.Allow("client", 2, 0) {
		t.Fatalf("first call should pass")
	}
	if !l.Allow("client", 2, 0) {
		t.Fatalf("second call should pass")
	}
	if l.Allow("client", 2, 0) {
		t.Fatalf("bucket should be empty")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("client", 2, 1000) {
		t.Fatalf("bucket should refill")
	}
}

func TestLimiterKeysIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.0001) {
		t.Fatalf("first a should pass")
	}
	if l.Allow("a", 1, 0.0001) {
		t.Fatalf("a should be drained")
	}
	if !l.Allow("b", 1, 0.0001) {
		t.Fatalf("b should be independent of a")
	}
}
