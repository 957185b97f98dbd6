package readdir

import (
	"context"
	"iter"

	"github.com/michaelscutari/readdir/internal/iterate"
	"github.com/michaelscutari/readdir/internal/reader"
)

// Iter returns an iterator over the logical paths under dir. Entries are
// read ahead only a little beyond what the loop has consumed. The first
// error, including a validation error, is yielded once and ends the
// iteration. Breaking out of the loop stops the traversal.
func Iter(ctx context.Context, dir string, opts *Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for c, err := range chunks(ctx, dir, opts, false) {
			if !yield(c.Path, err) {
				return
			}
		}
	}
}

// IterStats is Iter yielding metadata records.
func IterStats(ctx context.Context, dir string, opts *Options) iter.Seq2[*Stats, error] {
	return func(yield func(*Stats, error) bool) {
		for c, err := range chunks(ctx, dir, opts, true) {
			if !yield(c.Stats, err) {
				return
			}
		}
	}
}

func chunks(ctx context.Context, dir string, opts *Options, stats bool) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		n, err := compile(opts, stats)
		if err != nil {
			yield(Entry{}, err)
			return
		}

		q := newChunkQueue(highWaterMark, true)
		defer q.stop()
		r := reader.New(dir, n, iterate.Parallel{}, reader.Handlers{
			Data:  q.push,
			Error: q.fail,
			End:   q.end,
		})

		for {
			c, ok, err := q.next(ctx, r.Pull)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !ok || !yield(c, nil) {
				return
			}
		}
	}
}
