package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers runs goroutines that share one cancellable context. A camera pipeline and a
// latest-frame reader each run their loops as workers.
type StoppableWorkers interface {
	AddWorkers(...func(context.Context))
	Stop()
	Context() context.Context
}

type workers struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// NewStoppableWorkers starts one goroutine per function.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), funcs...)
}

// NewStoppableWorkersWithContext is like NewStoppableWorkers, but cancelling ctx also cancels
// the workers. Stop must still be called to wait for them.
func NewStoppableWorkersWithContext(ctx context.Context, funcs ...func(context.Context)) StoppableWorkers {
	w := &workers{}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.AddWorkers(funcs...)
	return w
}

// AddWorkers starts more goroutines. It does nothing once Stop has been called or the parent
// context is done.
func (w *workers) AddWorkers(funcs ...func(context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.ctx.Err() != nil {
		return
	}
	for _, f := range funcs {
		f := f
		w.running.Add(1)
		goutils.PanicCapturingGo(func() {
			defer w.running.Done()
			f(w.ctx)
		})
	}
}

// Stop cancels the workers and waits for all of them to return. It may be called more than once
// but never from a worker.
func (w *workers) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()
	w.running.Wait()
}

func (w *workers) Context() context.Context {
	return w.ctx
}
