package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// State is the lifecycle position of a Task.
type State int32

const (
	// StateReady is the initial state; the task has not been started.
	StateReady State = iota
	// StateExecuting means Start ran and the task has not terminated yet.
	StateExecuting
	// StateFinished is terminal; the task holds a Result.
	StateFinished
	// StateCancelled is terminal; the task holds no Result.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is finished or cancelled.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

type outcomeKind int

const (
	outcomeInvalid outcomeKind = iota
	outcomeImmediate
	outcomeSuspended
	outcomeCancelled
)

// Outcome is what a work function reports when it returns.
// The zero value is invalid and fails the task.
type Outcome[T any] struct {
	kind  outcomeKind
	value T
}

// Immediate finishes the task with v as soon as the work function returns.
func Immediate[T any](v T) Outcome[T] {
	return Outcome[T]{kind: outcomeImmediate, value: v}
}

// Suspended leaves the task executing; a later Finish or Cancel terminates it.
func Suspended[T any]() Outcome[T] {
	return Outcome[T]{kind: outcomeSuspended}
}

// Cancelled cancels the task when the work function returns.
func Cancelled[T any]() Outcome[T] {
	return Outcome[T]{kind: outcomeCancelled}
}

// Result is the final value of a finished task: a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// WorkFunc is the body of a task. It receives the task itself so that
// suspended work can finish or cancel it later. A returned error is the same
// as calling Fail with it.
type WorkFunc[T any] func(t *Task[T]) (Outcome[T], error)

// Runnable is the type-erased view of a Task used by Queue.
type Runnable interface {
	Name() string
	Start()
	Cancel() bool
	State() State
	Done() <-chan struct{}
	Err() error
}

// Task is a one-shot unit of work with guarded state transitions.
type Task[T any] struct {
	name       string
	work       WorkFunc[T]
	completion func(*Result[T])
	done       chan struct{}

	mu     sync.Mutex
	state  State
	result *Result[T]
}

// New creates a ready task. completion may be nil; when set it is invoked
// exactly once with the final result, or nil if the task was cancelled.
func New[T any](name string, work WorkFunc[T], completion func(*Result[T])) *Task[T] {
	return &Task[T]{
		name:       name,
		work:       work,
		completion: completion,
		done:       make(chan struct{}),
		state:      StateReady,
	}
}

// Name returns the label given at construction.
func (t *Task[T]) Name() string {
	return t.name
}

// Start moves a ready task to executing and invokes the work function once,
// synchronously. It is a no-op in any other state.
func (t *Task[T]) Start() {
	t.mu.Lock()
	if t.state != StateReady {
		t.mu.Unlock()
		return
	}
	t.state = StateExecuting
	t.mu.Unlock()

	outcome, err := t.invoke()
	if err != nil {
		t.Fail(err)
		return
	}

	switch outcome.kind {
	case outcomeImmediate:
		t.Succeed(outcome.value)
	case outcomeSuspended:
		// Finish or Cancel arrives from elsewhere.
	case outcomeCancelled:
		t.Cancel()
	default:
		t.Fail(fmt.Errorf("task %q: work function returned no outcome", t.name))
	}
}

func (t *Task[T]) invoke() (out Outcome[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q panicked: %v", t.name, r)
		}
	}()
	if t.work == nil {
		return out, errors.New("task has no work function")
	}
	return t.work(t)
}

// Finish records res and moves the task to finished. It returns false when
// the task had already terminated.
func (t *Task[T]) Finish(res Result[T]) bool {
	return t.terminate(StateFinished, &res)
}

// Succeed finishes the task with a value.
func (t *Task[T]) Succeed(v T) bool {
	return t.Finish(Result[T]{Value: v})
}

// Fail finishes the task with an error.
func (t *Task[T]) Fail(err error) bool {
	return t.Finish(Result[T]{Err: err})
}

// Cancel discards any result and moves the task to cancelled. It returns
// false when the task had already terminated.
func (t *Task[T]) Cancel() bool {
	return t.terminate(StateCancelled, nil)
}

func (t *Task[T]) terminate(next State, res *Result[T]) bool {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return false
	}
	t.state = next
	t.result = res
	t.mu.Unlock()

	close(t.done)
	if t.completion != nil {
		t.completion(res)
	}
	return true
}

// State returns the current state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsReady reports whether the task has not started.
func (t *Task[T]) IsReady() bool { return t.State() == StateReady }

// IsExecuting reports whether the task started and has not terminated.
func (t *Task[T]) IsExecuting() bool { return t.State() == StateExecuting }

// IsFinished reports whether the task reached any terminal state.
func (t *Task[T]) IsFinished() bool { return t.State().Terminal() }

// IsCancelled reports whether the task was cancelled.
func (t *Task[T]) IsCancelled() bool { return t.State() == StateCancelled }

// Done is closed once the task reaches a terminal state, before the
// completion callback runs.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Result returns the final result, or nil while running or when cancelled.
func (t *Task[T]) Result() *Result[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return nil
	}
	res := *t.result
	return &res
}

// Err returns the error of a finished task, if any.
func (t *Task[T]) Err() error {
	if res := t.Result(); res != nil {
		return res.Err
	}
	return nil
}

// Wait blocks until t terminates or ctx ends. A cancelled task yields a
// todoerr cancellation error.
func Wait[T any](ctx context.Context, t *Task[T]) (T, error) {
	var zero T
	select {
	case <-t.Done():
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	res := t.Result()
	if res == nil {
		return zero, todoerr.Cancelled(fmt.Sprintf("task %q cancelled", t.name))
	}
	return res.Value, res.Err
}
