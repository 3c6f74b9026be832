package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a group of background goroutines sharing one cancellable context.
type StoppableWorkers interface {
	Add(...func(context.Context))
	Stop()
	Context() context.Context
}

type stoppableWorkers struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  func()
	running sync.WaitGroup
}

// NewStoppableWorkers starts each function in its own goroutine. The workers' context is derived
// from parent and is cancelled by Stop.
func NewStoppableWorkers(parent context.Context, funcs ...func(context.Context)) StoppableWorkers {
	ctx, cancel := context.WithCancel(parent)
	sw := &stoppableWorkers{ctx: ctx, cancel: cancel}
	sw.Add(funcs...)
	return sw
}

// Add starts more workers. It is a no-op once Stop has been called.
func (sw *stoppableWorkers) Add(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ctx.Err() != nil {
		return
	}

	sw.running.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.running.Done()
			f(sw.ctx)
		})
	}
}

// Stop cancels the workers' context and waits for every worker to return.
func (sw *stoppableWorkers) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cancel()
	sw.running.Wait()
}

// Context returns the context the workers watch.
func (sw *stoppableWorkers) Context() context.Context {
	return sw.ctx
}
