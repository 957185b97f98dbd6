// Package iterate provides the fan-out policies used to process the entries
// of one directory.
package iterate

import "sync/atomic"

// Strategy dispatches work for a traversal.
type Strategy interface {
	// Go runs fn, either inline or in the background.
	Go(fn func())

	// ForEach calls fn for every item and calls done exactly once, after
	// every item has called its own done callback.
	ForEach(items []string, fn func(item string, done func()), done func())
}

// Sequential processes items one at a time in the calling goroutine.
type Sequential struct{}

func (Sequential) Go(fn func()) {
	fn()
}

func (Sequential) ForEach(items []string, fn func(item string, done func()), done func()) {
	if len(items) == 0 {
		done()
		return
	}
	// The extra count is released after the loop so done cannot fire while
	// items are still being issued.
	c := newCountdown(len(items)+1, done)
	for _, item := range items {
		fn(item, c.once())
	}
	c.release()
}

// Parallel starts one goroutine per item, without a cap.
type Parallel struct{}

func (Parallel) Go(fn func()) {
	go fn()
}

func (Parallel) ForEach(items []string, fn func(item string, done func()), done func()) {
	if len(items) == 0 {
		done()
		return
	}
	c := newCountdown(len(items), done)
	for _, item := range items {
		go fn(item, c.once())
	}
}

type countdown struct {
	remaining atomic.Int64
	done      func()
}

func newCountdown(n int, done func()) *countdown {
	c := &countdown{done: done}
	c.remaining.Store(int64(n))
	return c
}

// once returns a callback that releases one count no matter how many times
// it is called.
func (c *countdown) once() func() {
	var called atomic.Bool
	return func() {
		if called.CompareAndSwap(false, true) {
			c.release()
		}
	}
}

func (c *countdown) release() {
	if c.remaining.Add(-1) == 0 {
		c.done()
	}
}
