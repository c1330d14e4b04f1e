package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NSSimpleApps/TestToDoList/internal/telemetry"
)

// Queue runs submitted tasks strictly one at a time, in FIFO order.
//
// Thread-safety model:
//   - Submit, CancelAll, Len and Close are safe from any goroutine
//   - tasks start on the queue's own goroutine
//   - the next task starts only after the current one reached a terminal state
//
// Close must not be called from inside a task running on the same queue.
type Queue struct {
	name    string
	logger  *slog.Logger
	metrics *telemetry.TaskMetrics

	mu      sync.Mutex
	pending []Runnable
	current Runnable
	closed  bool

	signal  chan struct{} // buffered, size 1
	quit    chan struct{}
	stopped chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLogger sets the logger for queue diagnostics.
func WithLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithMetrics records every terminal task on m. A nil m disables metrics.
func WithMetrics(m *telemetry.TaskMetrics) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

// NewQueue creates a queue and starts its worker goroutine.
func NewQueue(name string, opts ...QueueOption) *Queue {
	q := &Queue{
		name:    name,
		logger:  slog.Default(),
		pending: make([]Runnable, 0, 16),
		signal:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("queue", name)

	go q.run()
	return q
}

// Name returns the queue label.
func (q *Queue) Name() string {
	return q.name
}

// Submit appends r to the queue. It returns false, and cancels r, when the
// queue is closed.
func (q *Queue) Submit(r Runnable) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		r.Cancel()
		return false
	}
	q.pending = append(q.pending, r)
	q.mu.Unlock()

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// CancelAll cancels the executing task and every pending one. Pending tasks
// are removed and never start.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	victims := q.drainLocked()
	q.mu.Unlock()

	for _, r := range victims {
		r.Cancel()
	}
	if len(victims) > 0 {
		q.logger.Debug("cancelled tasks", "count", len(victims))
	}
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close cancels all outstanding tasks, rejects further submissions and waits
// for the worker goroutine to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	close(q.quit)
	victims := q.drainLocked()
	q.mu.Unlock()

	for _, r := range victims {
		r.Cancel()
	}
	<-q.stopped
}

// drainLocked returns the current task followed by pending tasks in order
// and empties the pending list. Caller holds q.mu.
func (q *Queue) drainLocked() []Runnable {
	victims := make([]Runnable, 0, len(q.pending)+1)
	if q.current != nil {
		victims = append(victims, q.current)
	}
	for i, r := range q.pending {
		victims = append(victims, r)
		q.pending[i] = nil
	}
	q.pending = q.pending[:0]
	return victims
}

func (q *Queue) run() {
	defer close(q.stopped)

	for {
		if r, ok := q.tryDequeue(); ok {
			q.execute(r)
			continue
		}

		select {
		case <-q.quit:
			return
		case <-q.signal:
		}
	}
}

func (q *Queue) tryDequeue() (Runnable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.pending) == 0 {
		return nil, false
	}

	r := q.pending[0]
	// Nil out the slot so the backing array does not retain the task.
	q.pending[0] = nil
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
	q.current = r
	return r, true
}

func (q *Queue) execute(r Runnable) {
	started := time.Now()
	r.Start()
	<-r.Done()
	elapsed := time.Since(started)

	q.mu.Lock()
	if q.current == r {
		q.current = nil
	}
	q.mu.Unlock()

	outcome := outcomeLabel(r)
	q.metrics.RecordTask(context.Background(), q.name, outcome, elapsed)
	if err := r.Err(); err != nil {
		q.logger.Debug("task failed", "task", r.Name(), "duration", elapsed, "error", err)
		return
	}
	q.logger.Debug("task done", "task", r.Name(), "outcome", outcome, "duration", elapsed)
}

func outcomeLabel(r Runnable) string {
	switch {
	case r.State() == StateCancelled:
		return telemetry.OutcomeCancelled
	case r.Err() != nil:
		return telemetry.OutcomeFailed
	default:
		return telemetry.OutcomeSucceeded
	}
}
