package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock for timer-driven tests.
//
// Timers registered with AfterFunc fire only when Advance moves the clock
// past their deadline, in deadline order. Callbacks run on the goroutine
// calling Advance, outside the clock's lock.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int64
	timers map[int64]*fakeTimer
}

type fakeTimer struct {
	id       int64
	deadline time.Time
	fn       func()
}

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{
		now:    start,
		timers: make(map[int64]*fakeTimer),
	}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers fn to run once the clock advances by d. The returned
// stop function reports whether it prevented the call.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.timers[id] = &fakeTimer{id: id, deadline: c.now.Add(d), fn: fn}

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.timers[id]; !ok {
			return false
		}
		delete(c.timers, id)
		return true
	}
}

// Advance moves the clock forward by d and fires every timer now due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := make([]*fakeTimer, 0, len(c.timers))
	for id, tm := range c.timers {
		if !tm.deadline.After(c.now) {
			due = append(due, tm)
			delete(c.timers, id)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, tm := range due {
		tm.fn()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
