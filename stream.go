package readdir

import (
	"context"
	"slices"
	"sync"

	"github.com/michaelscutari/readdir/internal/iterate"
	"github.com/michaelscutari/readdir/internal/options"
	"github.com/michaelscutari/readdir/internal/reader"
)

// Stream delivers entries over a channel as they are produced. Reading
// stops while the consumer falls behind. Errors do not end a stream: each
// one is passed to the OnError handlers and the traversal continues.
//
// Handlers run on the traversal's goroutines while its state is locked.
// They must return quickly and must not block on the stream's channel.
type Stream struct {
	ctx  context.Context
	dir  string
	opts *options.Normalized

	onError   []func(error)
	onFile    []func(Entry)
	onDir     []func(Entry)
	onSymlink []func(Entry)

	start sync.Once
	out   chan Entry
	done  chan struct{}

	mu  sync.Mutex
	err error
}

// NewStream validates opts and prepares a stream of logical paths. The
// traversal begins with Start.
func NewStream(ctx context.Context, dir string, opts *Options) (*Stream, error) {
	return newStream(ctx, dir, opts, false)
}

// NewStreamStats prepares a stream whose entries carry metadata records.
func NewStreamStats(ctx context.Context, dir string, opts *Options) (*Stream, error) {
	return newStream(ctx, dir, opts, true)
}

func newStream(ctx context.Context, dir string, opts *Options, stats bool) (*Stream, error) {
	n, err := compile(opts, stats)
	if err != nil {
		return nil, err
	}
	return &Stream{
		ctx:  ctx,
		dir:  dir,
		opts: n,
		out:  make(chan Entry),
		done: make(chan struct{}),
	}, nil
}

// OnError registers fn for soft errors. Handlers registered after Start
// are ignored.
func (s *Stream) OnError(fn func(error)) *Stream {
	s.onError = append(s.onError, fn)
	return s
}

// OnFile registers fn for regular files. Registering any classification
// handler makes the traversal resolve every entry.
func (s *Stream) OnFile(fn func(Entry)) *Stream {
	s.onFile = append(s.onFile, fn)
	return s
}

// OnDirectory registers fn for directories, including symlinks to them.
func (s *Stream) OnDirectory(fn func(Entry)) *Stream {
	s.onDir = append(s.onDir, fn)
	return s
}

// OnSymlink registers fn for symbolic links, broken or not.
func (s *Stream) OnSymlink(fn func(Entry)) *Stream {
	s.onSymlink = append(s.onSymlink, fn)
	return s
}

// Start begins the traversal and returns the entry channel, which is closed
// when the traversal ends or the stream's context is done. Later calls
// return the same channel.
func (s *Stream) Start() <-chan Entry {
	s.start.Do(func() {
		q := newChunkQueue(highWaterMark, false)
		h := reader.Handlers{
			Data:  q.push,
			Error: s.errorHandler(),
			End:   q.end,
		}
		h.File = fanout(s.onFile)
		h.Directory = fanout(s.onDir)
		h.Symlink = fanout(s.onSymlink)

		r := reader.New(s.dir, s.opts, iterate.Parallel{}, h)
		go s.forward(q, r)
	})
	return s.out
}

// Done is closed after the entry channel.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the first error the stream saw, soft or from its context.
// It is only meaningful once Done is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) forward(q *chunkQueue, r *reader.Reader) {
	defer close(s.done)
	defer close(s.out)

	for {
		if err := s.ctx.Err(); err != nil {
			s.record(err)
			q.stop()
			return
		}
		c, ok, err := q.next(s.ctx, r.Pull)
		if err != nil {
			s.record(err)
			q.stop()
			return
		}
		if !ok {
			return
		}
		select {
		case s.out <- c:
		case <-s.ctx.Done():
			s.record(s.ctx.Err())
			q.stop()
			return
		}
	}
}

func (s *Stream) errorHandler() func(error) {
	handlers := slices.Clone(s.onError)
	return func(err error) {
		s.record(err)
		for _, fn := range handlers {
			fn(err)
		}
	}
}

func (s *Stream) record(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func fanout(fns []func(Entry)) func(Entry) {
	if len(fns) == 0 {
		return nil
	}
	fns = slices.Clone(fns)
	return func(c Entry) {
		for _, fn := range fns {
			fn(c)
		}
	}
}
