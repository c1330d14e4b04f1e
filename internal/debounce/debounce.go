// Package debounce runs the most recently scheduled action after a delay,
// discarding any action scheduled before it that has not fired yet.
package debounce

import (
	"log/slog"
	"sync"
	"time"

	"github.com/NSSimpleApps/TestToDoList/internal/task"
)

// Clock creates timers. stop reports whether it prevented fn from running.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithDispatcher redirects the action to the caller's execution context,
// for example a channel drained by a UI loop. By default the action runs on
// the timer's goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(d *Debouncer) {
		if dispatch != nil {
			d.dispatch = dispatch
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debouncer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Debouncer owns a serial queue holding at most one live pending action.
type Debouncer struct {
	clock    Clock
	dispatch func(func())
	logger   *slog.Logger
	queue    *task.Queue

	// mu makes cancel-then-submit atomic across concurrent Schedule calls.
	mu sync.Mutex
}

// New creates a Debouncer. Call Close to release its queue.
func New(opts ...Option) *Debouncer {
	d := &Debouncer{
		clock:    realClock{},
		dispatch: func(fn func()) { fn() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = task.NewQueue("debounce", task.WithLogger(d.logger))
	return d
}

// Schedule cancels any pending action and arranges for action to run once
// delay elapses. A cancelled action never runs.
func (d *Debouncer) Schedule(delay time.Duration, action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue.CancelAll()

	var (
		timerMu sync.Mutex
		stop    func() bool
	)
	t := task.New("debounce", func(self *task.Task[struct{}]) (task.Outcome[struct{}], error) {
		if delay <= 0 {
			return task.Immediate(struct{}{}), nil
		}
		timerMu.Lock()
		defer timerMu.Unlock()
		if self.IsCancelled() {
			return task.Cancelled[struct{}](), nil
		}
		stop = d.clock.AfterFunc(delay, func() {
			self.Succeed(struct{}{})
		})
		return task.Suspended[struct{}](), nil
	}, func(res *task.Result[struct{}]) {
		if res == nil {
			timerMu.Lock()
			if stop != nil {
				stop()
			}
			timerMu.Unlock()
			return
		}
		if action != nil {
			d.dispatch(action)
		}
	})

	d.queue.Submit(t)
}

// Cancel drops the pending action, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.CancelAll()
}

// Close cancels the pending action and stops the queue.
func (d *Debouncer) Close() {
	d.queue.Close()
}
