package engine

import (
	"context"
	"sync"
)

// workerPool is a fixed-size goroutine pool with a bounded input queue,
// used for async rule executions.
type workerPool[T any] struct {
	queue   chan T
	process func(ctx context.Context, t T)
	wg      sync.WaitGroup
}

// newWorkerPool creates and starts a pool with n goroutines and queue capacity cap.
func newWorkerPool[T any](ctx context.Context, n, cap int, fn func(context.Context, T)) *workerPool[T] {
	p := &workerPool[T]{
		queue:   make(chan T, cap),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *workerPool[T]) run(ctx context.Context) {
	for {
		select {
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues work without blocking (returns false if full).
func (p *workerPool[T]) Submit(t T) bool {
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for all workers to finish.
func (p *workerPool[T]) Drain() {
	close(p.queue)
	p.wg.Wait()
}

// QueueLen returns how many jobs are currently queued.
func (p *workerPool[T]) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *workerPool[T]) QueueCap() int {
	return cap(p.queue)
}
