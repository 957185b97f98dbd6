// Package reader implements the traversal engine: a FIFO queue of
// directories, a count of directories in flight, and a buffer of produced
// chunks, all driven by consumer demand.
package reader

import (
	"sync"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
	"github.com/michaelscutari/readdir/internal/iterate"
	"github.com/michaelscutari/readdir/internal/options"
	"github.com/michaelscutari/readdir/internal/stat"
)

// Handlers receive the reader's output. They are called with the reader's
// lock held, so they must not block for long and must not call back into
// the Reader.
type Handlers struct {
	// Data receives each chunk and reports whether it can take more.
	Data func(entry.Chunk) bool
	// Error receives soft errors. It may be called before and after End.
	Error func(error)
	// End is called once, when nothing is queued, in flight or buffered.
	End func()

	// File, Directory and Symlink are called after Data for chunks of the
	// matching kind. Registering any of them forces metadata resolution.
	File      func(entry.Chunk)
	Directory func(entry.Chunk)
	Symlink   func(entry.Chunk)
}

type dir struct {
	path     string
	basePath string
	depth    int
}

// Reader is one traversal. It is not reusable.
type Reader struct {
	opts     *options.Normalized
	strategy iterate.Strategy
	h        Handlers
	classify bool

	mu       sync.Mutex
	queue    []dir
	pending  int
	buffer   []entry.Chunk
	demand   bool
	ended    bool
	draining bool
	redrain  bool
}

// State is a point-in-time view of the reader's accounting.
type State struct {
	Queued   int
	Pending  int
	Buffered int
	Demand   bool
	Ended    bool
}

// New creates a reader for root. Nothing happens until the first Pull.
func New(root string, opts *options.Normalized, strategy iterate.Strategy, h Handlers) *Reader {
	return &Reader{
		opts:     opts,
		strategy: strategy,
		h:        h,
		classify: opts.Emit || h.File != nil || h.Directory != nil || h.Symlink != nil,
		queue:    []dir{{path: root, basePath: opts.BasePath, depth: 0}},
	}
}

// Pull opens demand, delivers buffered chunks, starts queued directory
// reads and signals End if the traversal is complete.
func (r *Reader) Pull() {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.demand = true
	r.flush()
	r.mu.Unlock()

	r.drain()
}

// State returns the current accounting.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Queued:   len(r.queue),
		Pending:  r.pending,
		Buffered: len(r.buffer),
		Demand:   r.demand,
		Ended:    r.ended,
	}
}

// Ended reports whether End has been signalled.
func (r *Reader) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// drain starts queued directory reads while demand is open. A call made
// while another drain is running only asks that drain for one more pass,
// so synchronous traversal does not recurse once per directory.
func (r *Reader) drain() {
	r.mu.Lock()
	if r.draining {
		r.redrain = true
		r.mu.Unlock()
		return
	}
	r.draining = true
	for {
		for r.demand && len(r.queue) > 0 {
			d := r.queue[0]
			r.queue = r.queue[1:]
			r.pending++
			r.mu.Unlock()
			r.strategy.Go(func() { r.readDirectory(d) })
			r.mu.Lock()
		}
		if !r.redrain {
			break
		}
		r.redrain = false
	}
	r.draining = false
	r.checkEnd()
	r.mu.Unlock()
}

func (r *Reader) readDirectory(d dir) {
	names, err := fsys.Safe(func() ([]string, error) { return r.opts.FS.ReadDir(d.path) })
	if err != nil {
		r.reportError(&Error{Op: OpReadDir, Path: d.path, Root: d.depth == 0, Err: err})
		r.finishDirectory()
		return
	}
	r.strategy.ForEach(names, func(name string, done func()) {
		r.processItem(d, name)
		done()
	}, r.finishDirectory)
}

func (r *Reader) finishDirectory() {
	r.mu.Lock()
	r.pending--
	demand := r.demand
	r.mu.Unlock()

	if demand {
		r.drain()
	}
}

func (r *Reader) processItem(d dir, name string) {
	logical := d.basePath + name
	full := fsys.Join(r.opts.FS, d.path, name)

	if !r.opts.NeedsStats(d.depth, r.classify) {
		if r.filter(&entry.Stats{Name: name, Path: logical, Depth: d.depth}) {
			r.push(entry.Chunk{Path: logical})
		}
		return
	}

	st, err := stat.Resolve(r.opts.FS, full)
	if err != nil {
		r.reportError(&Error{Op: OpStat, Path: full, Err: err})
		return
	}
	st.Name = name
	st.Path = logical
	st.Depth = d.depth

	if r.shouldRecurse(st) {
		r.mu.Lock()
		r.queue = append(r.queue, dir{
			path:     full,
			basePath: logical + r.opts.Sep,
			depth:    d.depth + 1,
		})
		r.mu.Unlock()
	}

	if r.filter(st) {
		c := entry.Chunk{
			Path:      logical,
			IsFile:    st.IsFile(),
			IsDir:     st.IsDir(),
			IsSymlink: st.IsSymlink(),
		}
		if r.opts.ReturnStats {
			c.Stats = st
		}
		r.push(c)
	}
}

func (r *Reader) shouldRecurse(st *entry.Stats) bool {
	if st.Depth >= r.opts.MaxDepth || !st.IsDir() {
		return false
	}
	if r.opts.Recurse == nil {
		return true
	}
	ok, err := fsys.Safe(func() (bool, error) { return r.opts.Recurse(st) })
	if err != nil {
		r.reportError(&Error{Op: OpRecurse, Path: st.Path, Err: err})
		return false
	}
	return ok
}

func (r *Reader) filter(st *entry.Stats) bool {
	if r.opts.Filter == nil {
		return true
	}
	ok, err := fsys.Safe(func() (bool, error) { return r.opts.Filter(st) })
	if err != nil {
		r.reportError(&Error{Op: OpFilter, Path: st.Path, Err: err})
		return false
	}
	return ok
}

func (r *Reader) push(c entry.Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, c)
	r.flush()
}

// flush delivers buffered chunks until the buffer is empty or the consumer
// closes demand. The lock must be held.
func (r *Reader) flush() {
	for r.demand && len(r.buffer) > 0 {
		c := r.buffer[0]
		r.buffer[0] = entry.Chunk{}
		r.buffer = r.buffer[1:]
		r.deliver(c)
	}
}

func (r *Reader) deliver(c entry.Chunk) {
	if r.h.Data != nil {
		accepted := r.demand
		err := fsys.Guard(func() error {
			accepted = r.h.Data(c)
			return nil
		})
		if err != nil {
			r.emitError(&Error{Op: OpEmit, Path: c.Path, Err: err})
		}
		r.demand = accepted
	}

	if !r.classify {
		return
	}
	if c.IsFile {
		r.emitKind(r.h.File, c)
	}
	if c.IsSymlink {
		r.emitKind(r.h.Symlink, c)
	}
	if c.IsDir {
		r.emitKind(r.h.Directory, c)
	}
}

func (r *Reader) emitKind(fn func(entry.Chunk), c entry.Chunk) {
	if fn == nil {
		return
	}
	if err := fsys.Guard(func() error { fn(c); return nil }); err != nil {
		r.emitError(&Error{Op: OpEmit, Path: c.Path, Err: err})
	}
}

// checkEnd signals End once buffer, pending and queue are all empty. The
// lock must be held.
func (r *Reader) checkEnd() {
	if r.ended || len(r.buffer) > 0 || r.pending > 0 || len(r.queue) > 0 {
		return
	}
	r.ended = true
	if r.h.End == nil {
		return
	}
	if err := fsys.Guard(func() error { r.h.End(); return nil }); err != nil {
		r.emitError(&Error{Op: OpEmit, Err: err})
	}
}

func (r *Reader) reportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitError(err)
}

// emitError must be called with the lock held. A panicking Error handler
// has nowhere to report to and is dropped.
func (r *Reader) emitError(err error) {
	if r.h.Error != nil {
		_ = fsys.Guard(func() error { r.h.Error(err); return nil })
	}
}
