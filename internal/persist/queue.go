// Package persist runs durable writes behind optimistic in-memory updates.
//
// State slices mutate memory first and then Enqueue the write. A single
// worker executes tasks in issuance order, so writes to the same key are
// applied in the order they were issued. Failures are logged and fanned
// out to OnFailure hooks; the queue never rolls anything back.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Task is one durable write.
type Task func(ctx context.Context) error

// Failure describes a task that returned an error.
type Failure struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Err  error     `json:"-"`
	At   time.Time `json:"at"`
}

type job struct {
	id   string
	name string
	fn   Task
	done chan struct{}
}

// Queue is a FIFO write-behind queue.
type Queue struct {
	logger  *slog.Logger
	timeout time.Duration

	jobs    chan job
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	mu    sync.RWMutex
	hooks []func(Failure)
}

// New starts a queue. timeout bounds each task; zero means 10s.
func New(logger *slog.Logger, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &Queue{
		logger:  logger.With(slog.String("component", "persist")),
		timeout: timeout,
		jobs:    make(chan job, 1024),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// OnFailure registers a hook called (on the worker goroutine) for every
// failed task.
func (q *Queue) OnFailure(fn func(Failure)) {
	q.mu.Lock()
	q.hooks = append(q.hooks, fn)
	q.mu.Unlock()
}

// Enqueue schedules fn and returns its task id. After Close the task is
// dropped and "" is returned.
func (q *Queue) Enqueue(name string, fn Task) string {
	if q.closed.Load() {
		q.logger.Warn("persist: enqueue after close", slog.String("task", name))
		return ""
	}
	j := job{id: uuid.NewString(), name: name, fn: fn}
	select {
	case q.jobs <- j:
		return j.id
	case <-q.stopped:
		return ""
	}
}

// Flush blocks until every task enqueued before the call has run.
func (q *Queue) Flush(ctx context.Context) error {
	if q.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case q.jobs <- job{name: "flush", done: done}:
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close runs the tasks already queued and stops the worker.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.stopCh)
	}
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case j := <-q.jobs:
			q.exec(j)
		case <-q.stopCh:
			for {
				select {
				case j := <-q.jobs:
					q.exec(j)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) exec(j job) {
	if j.done != nil {
		close(j.done)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	err := j.fn(ctx)
	if err == nil {
		q.logger.Debug("persist: task done", slog.String("task", j.name), slog.String("id", j.id))
		return
	}

	q.logger.Error("persist: task failed",
		slog.String("task", j.name),
		slog.String("id", j.id),
		slog.String("error", err.Error()))

	f := Failure{ID: j.id, Name: j.name, Err: err, At: time.Now()}
	q.mu.RLock()
	hooks := append([]func(Failure){}, q.hooks...)
	q.mu.RUnlock()
	for _, h := range hooks {
		h(f)
	}
}
