// Package dispatch provides the low-level execution primitives used by the
// event dispatcher.
//
// # Executor
//
// Executor runs a single handler call with panic recovery and timing. A
// panicking handler is reported in the Result instead of unwinding the
// caller, so one misbehaving plugin cannot take down a dispatch pass.
//
//	exec := dispatch.NewExecutor()
//	res := exec.Execute(ctx, func(ctx context.Context) error {
//	    return handler.Handle(ctx, ev)
//	})
//	if res.IsPanic() {
//	    // res.PanicValue, res.PanicStack
//	}
//
// Execute never consults the context before running the call. Deadlines
// set by ExecuteWithTimeout are advisory: the call must observe ctx.
//
// # Pool
//
// Pool is a bounded worker pool used for fire-and-forget dispatch. Each
// submitted task runs on a worker goroutine under the same panic recovery
// as Execute.
//
//	pool := dispatch.NewPool(dispatch.WithWorkerCount(4))
//	_ = pool.Start()
//	defer pool.Stop(ctx)
//	err := pool.Submit(ctx, func(ctx context.Context) { ... })
package dispatch
