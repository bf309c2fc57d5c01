package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// Workers is a group of goroutines sharing one cancellable context. A panic in a worker is
// logged and recovered instead of crashing the process.
type Workers struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkers starts funcs under a context derived from parent.
func NewWorkers(parent context.Context, funcs ...func(context.Context)) *Workers {
	ctx, cancel := context.WithCancel(parent)
	w := &Workers{ctx: ctx, cancel: cancel}
	w.Go(funcs...)
	return w
}

// Go starts more workers. It does nothing once the group is stopped or its parent is done.
func (w *Workers) Go(funcs ...func(context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	w.wg.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer w.wg.Done()
			f(w.ctx)
		})
	}
}

// Stop cancels the workers' context and waits for all of them to return.
func (w *Workers) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancel()
	w.wg.Wait()
}

// Context is the context handed to every worker.
func (w *Workers) Context() context.Context {
	return w.ctx
}
