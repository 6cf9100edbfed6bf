package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work run by a Pool.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of worker goroutines fed by a bounded queue.
type Pool struct {
	queueSize   int
	workerCount int

	mu      sync.Mutex
	queue   chan queuedTask
	running atomic.Bool
	wg      sync.WaitGroup

	executor *Executor

	submitted   atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

type queuedTask struct {
	ctx  context.Context
	task Task
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) PoolOption {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) PoolOption {
	return func(p *Pool) {
		if count > 0 {
			p.workerCount = count
		}
	}
}

// WithPoolPanicHandler sets the panic callback for tasks.
func WithPoolPanicHandler(h PanicHandler) PoolOption {
	return func(p *Pool) {
		p.executor = NewExecutor(WithPanicHandler(h))
	}
}

// NewPool creates a stopped pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		queueSize:   1024,
		workerCount: 4,
		executor:    NewExecutor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return ErrAlreadyRunning
	}

	p.queue = make(chan queuedTask, p.queueSize)
	p.running.Store(true)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(p.queue)
	}
	return nil
}

// Stop closes the queue and waits for queued tasks to drain or for ctx to
// end, whichever comes first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running.Store(false)
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues task without blocking. It returns ErrQueueFull when the
// queue is at capacity.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return ErrNotRunning
	}

	select {
	case p.queue <- queuedTask{ctx: ctx, task: task}:
		p.submitted.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

func (p *Pool) worker(queue <-chan queuedTask) {
	defer p.wg.Done()

	for qt := range queue {
		res := p.executor.Execute(qt.ctx, func(ctx context.Context) error {
			qt.task(ctx)
			return nil
		})
		p.processed.Add(1)
		p.totalTimeNs.Add(res.Duration.Nanoseconds())
		if res.Panicked {
			p.panicked.Add(1)
		}
	}
}

// QueueDepth returns the number of tasks waiting to run.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Load() {
		return 0
	}
	return len(p.queue)
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// PoolStats contains pool counters.
type PoolStats struct {
	Submitted     uint64
	Processed     uint64
	Panicked      uint64
	Dropped       uint64
	QueueDepth    int
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	processed := p.processed.Load()
	totalNs := p.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return PoolStats{
		Submitted:     p.submitted.Load(),
		Processed:     processed,
		Panicked:      p.panicked.Load(),
		Dropped:       p.dropped.Load(),
		QueueDepth:    p.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}
