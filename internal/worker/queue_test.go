package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueue_ConcurrencyBound(t *testing.T) {
	q := New(Options{Concurrency: Fixed(2), PollInterval: 5 * time.Millisecond})

	var active, maxActive atomic.Int32
	for i := 0; i < 5; i++ {
		q.Add(func(ctx context.Context) error {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(100 * time.Millisecond)
			active.Add(-1)
			return nil
		})
	}

	start := time.Now()
	q.Run(context.Background())
	if err := q.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 300*time.Millisecond {
		t.Errorf("Expected at least 3 dispatch waves (300ms), took %v", elapsed)
	}
	if got := maxActive.Load(); got > 2 {
		t.Errorf("Expected at most 2 concurrent tasks, observed %d", got)
	}
}

func TestQueue_PriorityInsertion(t *testing.T) {
	q := New(Options{PollInterval: time.Millisecond})

	var mu sync.Mutex
	var order []string
	record := func(name string) Task {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	q.Add(record("a"))
	q.Add(record("b"))
	q.Add(record("c"), WithPriority())

	q.Run(context.Background())
	if err := q.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"c", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, order)
			break
		}
	}
}

func TestQueue_CancelDropsPendingAndIgnoresAdd(t *testing.T) {
	q := New(Options{Concurrency: Fixed(1), PollInterval: time.Millisecond})

	var ran atomic.Int32
	release := make(chan struct{})
	q.Add(func(ctx context.Context) error {
		ran.Add(1)
		<-release
		return nil
	})
	for i := 0; i < 3; i++ {
		q.Add(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	q.Run(context.Background())
	for q.Active() == 0 {
		time.Sleep(time.Millisecond)
	}

	done := make(chan error, 1)
	go func() { done <- q.Cancel(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Cancel returned before the active task finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for Cancel")
	}

	if !q.Cancelled() {
		t.Error("Expected queue to report cancelled")
	}
	q.Add(func(ctx context.Context) error { ran.Add(1); return nil })
	if q.Pending() != 0 {
		t.Errorf("Expected Add after Cancel to be ignored, pending=%d", q.Pending())
	}
	if got := ran.Load(); got != 1 {
		t.Errorf("Expected only the in-flight task to run, ran %d", got)
	}
}

func TestQueue_TaskFailuresReleaseSlot(t *testing.T) {
	q := New(Options{Concurrency: Fixed(1), PollInterval: time.Millisecond})

	var ran atomic.Int32
	q.Add(func(ctx context.Context) error { panic("boom") })
	q.Add(func(ctx context.Context) error { return errors.New("failed") })
	q.Add(func(ctx context.Context) error { ran.Add(1); return nil })

	q.Run(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Finish(ctx); err != nil {
		t.Fatalf("Expected queue to drain after failures, got %v", err)
	}
	if ran.Load() != 1 {
		t.Error("Expected the last task to run")
	}
	if q.Active() != 0 {
		t.Errorf("Expected no active tasks, got %d", q.Active())
	}
}

func TestQueue_DynamicLimit(t *testing.T) {
	var limit atomic.Int32
	limit.Store(1)
	q := New(Options{
		Concurrency:  func() int { return int(limit.Load()) },
		PollInterval: time.Millisecond,
	})

	var active, maxActive atomic.Int32
	for i := 0; i < 6; i++ {
		q.Add(func(ctx context.Context) error {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(40 * time.Millisecond)
			active.Add(-1)
			return nil
		})
	}

	q.Run(context.Background())
	time.Sleep(20 * time.Millisecond)
	limit.Store(3)

	if err := q.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := maxActive.Load(); got < 2 || got > 3 {
		t.Errorf("Expected concurrency to grow to 2..3, observed %d", got)
	}
}

func TestQueue_DispatchDelay(t *testing.T) {
	q := New(Options{Concurrency: Fixed(10), Delay: 30 * time.Millisecond, PollInterval: time.Millisecond})

	var mu sync.Mutex
	var starts []time.Time
	for i := 0; i < 3; i++ {
		q.Add(func(ctx context.Context) error {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return nil
		})
	}

	q.Run(context.Background())
	if err := q.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(starts) != 3 {
		t.Fatalf("Expected 3 starts, got %d", len(starts))
	}
	if span := starts[2].Sub(starts[0]); span < 55*time.Millisecond {
		t.Errorf("Expected dispatches spaced by the delay, span was %v", span)
	}
}

func TestQueue_RunIsIdempotent(t *testing.T) {
	q := New(Options{Concurrency: Fixed(1), PollInterval: time.Millisecond})

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		q.Add(func(ctx context.Context) error { ran.Add(1); return nil })
	}
	q.Run(context.Background())
	q.Run(context.Background())
	q.Run(context.Background())

	if err := q.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ran.Load() != 4 {
		t.Errorf("Expected each task to run once, ran %d", ran.Load())
	}
}

func TestQueue_FinishHonorsContext(t *testing.T) {
	q := New(Options{PollInterval: time.Millisecond})
	q.Add(func(ctx context.Context) error { return nil })

	// never started, so Finish can only end through the context
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Finish(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
