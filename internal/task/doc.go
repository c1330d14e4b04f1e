// Package task implements the cancellable unit of work and the serial queue
// every asynchronous operation in the module runs on.
//
// A Task moves through ready -> executing -> {finished | cancelled}. Its work
// function returns an explicit Outcome: Immediate(value) finishes the task on
// the spot, Suspended() leaves it executing until some other goroutine calls
// Finish or Cancel, and Cancelled() cancels it. Terminal states are sticky;
// later Finish/Cancel calls are ignored. The completion callback fires exactly
// once, with nil when the task was cancelled.
//
// A Queue runs tasks one at a time in submission order on its own goroutine.
// A suspended task keeps the queue's single execution slot until it reaches a
// terminal state, so the queue behaves as a FIFO token rather than a pool.
//
// Cancellation is cooperative: work that resumes from an external callback
// should check IsCancelled and return without finishing.
package task
