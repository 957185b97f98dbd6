package readdir

import (
	"context"
	"sync"
)

// chunkQueue sits between the engine and a consumer goroutine. It reports
// itself full at the high-water mark and asks for more once the consumer has
// taken it back below.
type chunkQueue struct {
	mu       sync.Mutex
	items    []Entry
	hwm      int
	paused   bool
	ended    bool
	stopped  bool
	err      error
	failFast bool
	wake     chan struct{}
}

func newChunkQueue(hwm int, failFast bool) *chunkQueue {
	return &chunkQueue{
		hwm:      hwm,
		paused:   true,
		failFast: failFast,
		wake:     make(chan struct{}, 1),
	}
}

func (q *chunkQueue) push(c Entry) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, c)
	more := len(q.items) < q.hwm
	if !more {
		q.paused = true
	}
	q.mu.Unlock()
	q.notify()
	return more
}

func (q *chunkQueue) fail(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
	q.notify()
}

func (q *chunkQueue) end() {
	q.mu.Lock()
	q.ended = true
	q.mu.Unlock()
	q.notify()
}

// stop makes every later push report the queue full.
func (q *chunkQueue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.items = nil
	q.mu.Unlock()
}

func (q *chunkQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next blocks until a chunk is available, the traversal ends, an error is
// recorded (fail-fast queues only) or ctx is done. pull is called without
// the queue lock whenever the engine must be asked for more.
func (q *chunkQueue) next(ctx context.Context, pull func()) (Entry, bool, error) {
	for {
		q.mu.Lock()
		if q.failFast && q.err != nil {
			err := q.err
			q.mu.Unlock()
			return Entry{}, false, err
		}
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = Entry{}
			q.items = q.items[1:]
			resume := q.paused && len(q.items) < q.hwm
			if resume {
				q.paused = false
			}
			q.mu.Unlock()
			if resume {
				pull()
			}
			return c, true, nil
		}
		if q.ended {
			q.mu.Unlock()
			return Entry{}, false, nil
		}
		resume := q.paused
		q.paused = false
		q.mu.Unlock()

		if resume {
			pull()
			continue
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return Entry{}, false, ctx.Err()
		}
	}
}
