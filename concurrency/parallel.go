package concurrency

import (
	"context"
	"sync"
)

// ParallelExecutor runs independent tasks on a bounded number of goroutines.
type ParallelExecutor struct {
	maxWorkers int
}

// NewParallelExecutor creates an executor; maxWorkers below 1 means 1.
func NewParallelExecutor(maxWorkers int) *ParallelExecutor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ParallelExecutor{
		maxWorkers: maxWorkers,
	}
}

// Workers returns the configured worker count.
func (p *ParallelExecutor) Workers() int {
	return p.maxWorkers
}

// Execute runs every fn and returns their errors by index.
func (p *ParallelExecutor) Execute(fns []func() error) []error {
	wrapped := make([]func(context.Context) error, len(fns))
	for i, fn := range fns {
		wrapped[i] = func(context.Context) error { return fn() }
	}
	return p.ExecuteContext(context.Background(), wrapped)
}

// ExecuteContext runs fns in submission order. Once ctx is done no further
// task is started; the skipped ones report ctx.Err(). Running tasks are
// never interrupted. A panic in a task is re-raised on the calling
// goroutine after every worker has stopped.
func (p *ParallelExecutor) ExecuteContext(ctx context.Context, fns []func(context.Context) error) []error {
	if len(fns) == 0 {
		return nil
	}

	workers := p.maxWorkers
	if len(fns) < workers {
		workers = len(fns)
	}

	queue := make(chan int, len(fns))
	results := make([]error, len(fns))

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicVal  any
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range queue {
				if err := ctx.Err(); err != nil {
					results[index] = err
					continue
				}
				results[index] = runTask(ctx, fns[index], func(r any) {
					panicOnce.Do(func() { panicVal = r })
				})
			}
		}()
	}

	for i := range fns {
		queue <- i
	}
	close(queue)

	wg.Wait()
	if panicVal != nil {
		panic(panicVal)
	}
	return results
}

func runTask(ctx context.Context, fn func(context.Context) error, onPanic func(any)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			onPanic(r)
		}
	}()
	return fn(ctx)
}

// Semaphore bounds concurrent work started from independent goroutines.
type Semaphore struct {
	tickets chan struct{}
}

func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{
		tickets: make(chan struct{}, capacity),
	}
}

// Acquire blocks until a ticket is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Semaphore) Release() {
	<-s.tickets
}
