// Package tasks runs follow-up work (usage tracking, streak refresh, event
// publishing) outside the request that produced it. Tasks are retried with
// exponential backoff and never affect the caller's outcome.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("task queue closed")

// ErrQueueFull is returned by Enqueue when the buffer is exhausted
var ErrQueueFull = errors.New("task queue full")

// Func is the body of a task
type Func func(ctx context.Context) error

type task struct {
	name string
	fn   Func
}

// Queue is a bounded in-process task queue served by a fixed worker pool
type Queue struct {
	tasks    chan task
	attempts int
	backoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures a Queue
type Option func(*Queue)

// WithBackoff sets the delay before the first retry; it doubles per attempt
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// WithBuffer sets how many tasks may wait for a worker
func WithBuffer(n int) Option {
	return func(q *Queue) { q.tasks = make(chan task, n) }
}

// New starts a queue with the given number of workers. Each task runs at
// most retries+1 times.
func New(workers, retries int, opts ...Option) *Queue {
	if workers < 1 {
		workers = 1
	}
	if retries < 0 {
		retries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:    make(chan task, 256),
		attempts: retries + 1,
		backoff:  500 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules fn without blocking. The error only reports whether the
// task was accepted.
func (q *Queue) Enqueue(name string, fn Func) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		log.WithField("task", name).Warn("Task dropped: queue closed")
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task{name: name, fn: fn}:
		return nil
	default:
		log.WithField("task", name).Warn("Task dropped: queue full")
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// expires first, in-flight retries are abandoned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	delay := q.backoff
	for attempt := 1; attempt <= q.attempts; attempt++ {
		err := q.call(t)
		if err == nil {
			return
		}

		entry := log.WithFields(log.Fields{"task": t.name, "attempt": attempt}).WithError(err)
		if attempt == q.attempts {
			entry.Error("Task failed, giving up")
			return
		}
		entry.Warn("Task failed, retrying")

		select {
		case <-time.After(delay):
			delay *= 2
		case <-q.ctx.Done():
			entry.Warn("Task abandoned on shutdown")
			return
		}
	}
}

// call runs one attempt and turns a panic into an error
func (q *Queue) call(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return t.fn(q.ctx)
}

// PanicError wraps a value recovered from a panicking task
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
