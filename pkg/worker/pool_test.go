package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360/streambridge/pkg/queue"
)

func newQueue(t *testing.T, capacity int) *queue.Bounded[int] {
	t.Helper()
	q, err := queue.NewBounded[int](capacity)
	if err != nil {
		t.Fatalf("NewBounded failed: %v", err)
	}
	return q
}

func TestNewPool_Defaults(t *testing.T) {
	q := newQueue(t, 10)
	fn := func(context.Context, int) error { return nil }

	pool := NewPool(0, q, fn)
	if pool.workers != 1 {
		t.Errorf("expected 1 worker for zero input, got %d", pool.workers)
	}
	if pool.pollTimeout != defaultPollTimeout {
		t.Errorf("expected default poll timeout, got %v", pool.pollTimeout)
	}
}

func TestNewPool_NilProcessorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil processing function")
		}
	}()
	NewPool[int](2, newQueue(t, 1), nil)
}

func TestNewPool_NilSourcePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil source queue")
		}
	}()
	NewPool[int](2, nil, func(context.Context, int) error { return nil })
}

func TestPool_ProcessesQueuedItems(t *testing.T) {
	q := newQueue(t, 10)
	var processed int64
	pool := NewPool(2, q, func(_ context.Context, _ int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}, WithPollTimeout[int](10*time.Millisecond))

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pool.Start(context.Background()); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Errorf("expected ErrPoolAlreadyStarted, got %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := q.Put(i); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	q.Close()
	if err := pool.Stop(true, 5*time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := atomic.LoadInt64(&processed); got != 5 {
		t.Errorf("expected 5 processed items, got %d", got)
	}
	if pool.Stats().Processed != 5 {
		t.Errorf("stats disagree: %+v", pool.Stats())
	}
}

func TestPool_DrainProcessesBacklog(t *testing.T) {
	q := newQueue(t, 100)
	var processed int64
	pool := NewPool(1, q, func(_ context.Context, _ int) error {
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&processed, 1)
		return nil
	}, WithPollTimeout[int](10*time.Millisecond))

	for i := 0; i < 50; i++ {
		_ = q.Put(i)
	}

	_ = pool.Start(context.Background())
	q.Close()

	if err := pool.Stop(true, 10*time.Second); err != nil {
		t.Fatalf("drain Stop failed: %v", err)
	}
	if got := atomic.LoadInt64(&processed); got != 50 {
		t.Errorf("drain must process the whole backlog, got %d/50", got)
	}
}

func TestPool_ImmediateStopAbandonsBacklog(t *testing.T) {
	q := newQueue(t, 100)
	var processed int64
	pool := NewPool(1, q, func(_ context.Context, _ int) error {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&processed, 1)
		return nil
	}, WithPollTimeout[int](5*time.Millisecond))

	for i := 0; i < 100; i++ {
		_ = q.Put(i)
	}

	_ = pool.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	if err := pool.Stop(false, 5*time.Second); err != nil {
		t.Fatalf("immediate Stop failed: %v", err)
	}
	if got := atomic.LoadInt64(&processed); got >= 100 {
		t.Errorf("immediate stop should abandon backlog, processed %d", got)
	}
}

func TestPool_ErrorIsolation(t *testing.T) {
	q := newQueue(t, 10)
	var processed int64
	pool := NewPool(1, q, func(_ context.Context, item int) error {
		atomic.AddInt64(&processed, 1)
		if item == 2 {
			return errors.New("bad message")
		}
		return nil
	}, WithPollTimeout[int](10*time.Millisecond))

	_ = pool.Start(context.Background())
	for i := 0; i < 5; i++ {
		_ = q.Put(i)
	}
	q.Close()
	_ = pool.Stop(true, 5*time.Second)

	stats := pool.Stats()
	if stats.Processed != 5 {
		t.Errorf("a failing item must not stop the worker: processed %d/5", stats.Processed)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failed)
	}
}

func TestPool_PanicIsolation(t *testing.T) {
	q := newQueue(t, 10)
	pool := NewPool(1, q, func(_ context.Context, item int) error {
		if item == 1 {
			panic("poison message")
		}
		return nil
	}, WithPollTimeout[int](10*time.Millisecond))

	_ = pool.Start(context.Background())
	for i := 0; i < 4; i++ {
		_ = q.Put(i)
	}
	q.Close()
	_ = pool.Stop(true, 5*time.Second)

	stats := pool.Stats()
	if stats.Processed != 4 {
		t.Errorf("a panicking item must not kill the worker: processed %d/4", stats.Processed)
	}
	if stats.Panics != 1 {
		t.Errorf("expected 1 recovered panic, got %d", stats.Panics)
	}
	if stats.Failed != 1 {
		t.Errorf("panic must count as failure, got %d", stats.Failed)
	}
}

func TestPool_StopTimeout(t *testing.T) {
	q := newQueue(t, 10)
	blocker := make(chan struct{})
	pool := NewPool(1, q, func(_ context.Context, _ int) error {
		<-blocker // simulate a stuck handler
		return nil
	}, WithPollTimeout[int](10*time.Millisecond))

	_ = pool.Start(context.Background())
	_ = q.Put(1)
	time.Sleep(30 * time.Millisecond)

	err := pool.Stop(true, 50*time.Millisecond)
	if !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	close(blocker)
}

func TestPool_StopIdempotent(t *testing.T) {
	q := newQueue(t, 1)
	pool := NewPool(1, q, func(context.Context, int) error { return nil })

	if err := pool.Stop(true, time.Second); err != nil {
		t.Errorf("Stop before Start must be a no-op, got %v", err)
	}

	_ = pool.Start(context.Background())
	q.Close()
	if err := pool.Stop(true, time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := pool.Stop(true, time.Second); err != nil {
		t.Errorf("second Stop must be a no-op, got %v", err)
	}
}
