package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrStopped is returned by Do when the loop no longer accepts tasks.
var ErrStopped = errors.New("timeline stopped")

// Loop is the single-writer event loop.
type Loop struct {
	queue *taskQueue
	clock *Clock
}

// New creates a loop with an empty queue.
func New() *Loop {
	return &Loop{
		queue: newTaskQueue(),
		clock: NewClock(),
	}
}

// Post submits t for execution. Safe from any goroutine.
// Returns false if the loop has been stopped.
func (l *Loop) Post(t Task) bool {
	return l.queue.Enqueue(t)
}

// Do posts fn and blocks until it has run on the loop or ctx is done.
// Must not be called from inside a task: the loop would wait on itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
//
// A panicking task is logged and the loop continues with the next one.
func (l *Loop) Run(ctx context.Context) error {
	slog.Debug("timeline starting")

	for {
		if t, ok := l.queue.TryDequeue(); ok {
			l.execute(t)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("timeline stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The channel is closed once Stop runs; drain what remains first.
			if l.queue.Len() == 0 && l.stopped() {
				slog.Debug("timeline stopping: queue closed")
				return nil
			}
		}
	}
}

// RunPending executes queued tasks on the calling goroutine until the
// queue is empty, including tasks posted by those tasks. It returns the
// number executed. Intended for tests and one-shot callers that never
// start Run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		t, ok := l.queue.TryDequeue()
		if !ok {
			return n
		}
		l.execute(t)
		n++
	}
}

// Stop closes the queue. Run returns after draining queued tasks.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	return l.queue.Len()
}

// Clock returns the loop's logical clock.
func (l *Loop) Clock() *Clock {
	return l.clock
}

func (l *Loop) stopped() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}

func (l *Loop) execute(t Task) {
	seq := l.clock.Next()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("timeline task panicked",
				"seq", seq,
				"error", fmt.Sprint(r),
			)
		}
	}()
	t()
}
