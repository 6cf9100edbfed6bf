package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_StartStop(t *testing.T) {
	p := NewPool()

	if err := p.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !p.IsRunning() {
		t.Error("expected pool to be running after Start()")
	}
	if err := p.Start(); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if p.IsRunning() {
		t.Error("expected pool to be stopped")
	}
	if err := p.Stop(ctx); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestPool_Submit_NotRunning(t *testing.T) {
	p := NewPool()
	if err := p.Submit(context.Background(), func(context.Context) {}); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(WithWorkerCount(3), WithQueueSize(64))
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			count.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	if got := count.Load(); got != 20 {
		t.Errorf("ran %d tasks, want 20", got)
	}
	stats := p.Stats()
	if stats.Submitted != 20 || stats.Processed != 20 {
		t.Errorf("Stats() = %+v, want 20 submitted and processed", stats)
	}
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(WithWorkerCount(1), WithQueueSize(1))
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	if err := p.Submit(context.Background(), func(context.Context) {}); err != nil {
		t.Fatalf("second Submit() failed: %v", err)
	}
	if err := p.Submit(context.Background(), func(context.Context) {}); err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if got := p.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPool_PanicRecovered(t *testing.T) {
	var panics atomic.Int32
	p := NewPool(WithWorkerCount(1), WithPoolPanicHandler(func(any, []byte) {
		panics.Add(1)
	}))
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	_ = p.Submit(context.Background(), func(context.Context) { panic("task") })
	_ = p.Submit(context.Background(), func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a panicking task")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Stop(ctx)

	if panics.Load() != 1 {
		t.Errorf("panic handler called %d times, want 1", panics.Load())
	}
	if got := p.Stats().Panicked; got != 1 {
		t.Errorf("Panicked = %d, want 1", got)
	}
}

func TestPool_StopDrainsQueue(t *testing.T) {
	p := NewPool(WithWorkerCount(1), WithQueueSize(10))
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		_ = p.Submit(context.Background(), func(context.Context) {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if count.Load() != 5 {
		t.Errorf("drained %d tasks, want 5", count.Load())
	}
}
