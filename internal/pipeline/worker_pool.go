package pipeline

import (
	"context"
	"sync"
)

type Task func(ctx context.Context) error

// WorkerPool runs submitted tasks on a fixed number of goroutines. Close
// the pool after the last Submit; Run's channel closes once every accepted
// task has finished.
type WorkerPool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
}

func NewWorkerPool(workers, buffer int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, buffer),
	}
}

func (p *WorkerPool) Submit(t Task) {
	if p == nil || t == nil {
		return
	}
	p.tasks <- t
}

func (p *WorkerPool) Close() {
	if p == nil {
		return
	}
	close(p.tasks)
}

// Run starts the workers and returns a channel of task errors (nil entries
// are suppressed). Cancelling ctx stops workers from picking up further
// tasks; an in-flight task always runs to completion.
func (p *WorkerPool) Run(ctx context.Context) <-chan error {
	out := make(chan error, p.workers*64)
	if p == nil {
		close(out)
		return out
	}

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					if err := t(ctx); err != nil {
						out <- err
					}
				}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(out)
	}()
	return out
}
