package readdir

import (
	"context"
	"sync"

	"github.com/michaelscutari/readdir/internal/iterate"
	"github.com/michaelscutari/readdir/internal/reader"
)

// ReadSync lists dir in the calling goroutine and returns logical paths.
func ReadSync(dir string, opts *Options) ([]string, error) {
	chunks, err := collect(context.Background(), dir, opts, false, iterate.Sequential{})
	if err != nil {
		return nil, err
	}
	return chunkPaths(chunks), nil
}

// ReadSyncStats is ReadSync returning metadata records.
func ReadSyncStats(dir string, opts *Options) ([]*Stats, error) {
	chunks, err := collect(context.Background(), dir, opts, true, iterate.Sequential{})
	if err != nil {
		return nil, err
	}
	return chunkStats(chunks), nil
}

// Read lists dir, resolving entries concurrently. It returns the first
// error encountered, or ctx.Err() if ctx ends first; work already in flight
// finishes in the background and is discarded.
func Read(ctx context.Context, dir string, opts *Options) ([]string, error) {
	chunks, err := collect(ctx, dir, opts, false, iterate.Parallel{})
	if err != nil {
		return nil, err
	}
	return chunkPaths(chunks), nil
}

// ReadStats is Read returning metadata records.
func ReadStats(ctx context.Context, dir string, opts *Options) ([]*Stats, error) {
	chunks, err := collect(ctx, dir, opts, true, iterate.Parallel{})
	if err != nil {
		return nil, err
	}
	return chunkStats(chunks), nil
}

// ReadFunc runs Read in the background and passes its result to cb.
func ReadFunc(ctx context.Context, dir string, opts *Options, cb func([]string, error)) {
	go func() {
		cb(Read(ctx, dir, opts))
	}()
}

// collect aggregates a whole traversal. The first error is terminal.
func collect(ctx context.Context, dir string, opts *Options, stats bool, strategy iterate.Strategy) ([]Entry, error) {
	n, err := compile(opts, stats)
	if err != nil {
		return nil, err
	}

	var (
		results []Entry
		first   error
		once    sync.Once
		done    = make(chan struct{})
	)
	finish := func() { once.Do(func() { close(done) }) }

	// Handlers are serialized by the reader.
	r := reader.New(dir, n, strategy, reader.Handlers{
		Data: func(c Entry) bool {
			if first != nil || ctx.Err() != nil {
				return false
			}
			results = append(results, c)
			return true
		},
		Error: func(err error) {
			if first == nil {
				first = err
				finish()
			}
		},
		End: finish,
	})
	r.Pull()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if first != nil {
		return nil, first
	}
	return results, nil
}
