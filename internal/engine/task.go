package engine

import (
	"context"
	"sync"
)

const progressBuffer = 64

// Task is one outstanding engine request. Progress is closed before Done.
// The generation lets consumers drop output from a request they have
// already abandoned.
type Task[T any] struct {
	generation uint64
	progress   chan Progress
	done       chan struct{}
	cancel     context.CancelFunc

	mu     sync.Mutex
	result T
	err    error
}

// Run starts fn in its own goroutine. emit blocks until the consumer reads
// the update or the task is cancelled.
func Run[T any](ctx context.Context, generation uint64, fn func(ctx context.Context, emit func(Progress)) (T, error)) *Task[T] {
	runCtx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		generation: generation,
		progress:   make(chan Progress, progressBuffer),
		done:       make(chan struct{}),
		cancel:     cancel,
	}
	emit := func(p Progress) {
		select {
		case t.progress <- p:
		case <-runCtx.Done():
		}
	}
	go func() {
		defer cancel()
		res, err := fn(runCtx, emit)
		if runCtx.Err() != nil && err == nil {
			err = runCtx.Err()
		}
		t.mu.Lock()
		t.result, t.err = res, MapError(err)
		t.mu.Unlock()
		close(t.progress)
		close(t.done)
	}()
	return t
}

// Failed returns a task that has already finished with err.
func Failed[T any](generation uint64, err error) *Task[T] {
	t := &Task[T]{
		generation: generation,
		progress:   make(chan Progress),
		done:       make(chan struct{}),
		cancel:     func() {},
		err:        MapError(err),
	}
	close(t.progress)
	close(t.done)
	return t
}

func (t *Task[T]) Generation() uint64        { return t.generation }
func (t *Task[T]) Progress() <-chan Progress { return t.progress }
func (t *Task[T]) Done() <-chan struct{}     { return t.done }

// Cancel is best effort; the task still closes Done once fn returns.
func (t *Task[T]) Cancel() { t.cancel() }

// Result is only meaningful after Done is closed.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Wait drains progress and blocks for the result.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	for {
		select {
		case _, ok := <-t.progress:
			if !ok {
				<-t.done
				return t.Result()
			}
		case <-ctx.Done():
			var zero T
			return zero, MapError(ctx.Err())
		}
	}
}
