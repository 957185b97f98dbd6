// Package readdir enumerates the entries under a directory, optionally
// recursing and filtering, and delivers them as a slice, a stream with
// backpressure, or a pull iterator.
//
// Every adapter drives the same traversal engine. The synchronous calls run
// it inline in the caller's goroutine; the others resolve entries
// concurrently and deliver them in completion order.
package readdir

import (
	"errors"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
	"github.com/michaelscutari/readdir/internal/options"
	"github.com/michaelscutari/readdir/internal/reader"
)

type (
	// Options configures a traversal. See the field docs for accepted
	// Deep and Filter forms.
	Options = options.Options
	// Stats is the metadata record of one entry.
	Stats = entry.Stats
	// Entry is one traversal result.
	Entry = entry.Chunk
	// Predicate decides whether an entry is recursed into or reported.
	Predicate = options.Predicate
	// FileSystem is a complete filesystem binding.
	FileSystem = fsys.FileSystem
	// Funcs overrides individual methods of the OS binding.
	Funcs = fsys.Funcs
	// Error is a traversal failure confined to one path.
	Error = reader.Error
)

// Unbounded is the depth limit of a fully recursive traversal.
const Unbounded = options.Unbounded

// ErrInvalidOption matches every option validation error.
var ErrInvalidOption = options.ErrInvalid

// highWaterMark bounds the chunks an unconsumed stream or iterator holds
// before the engine stops reading directories.
const highWaterMark = 16

// IsFatal reports whether err means the traversal produced nothing useful:
// an invalid option, or a root directory that could not be listed.
func IsFatal(err error) bool {
	if errors.Is(err, options.ErrInvalid) {
		return true
	}
	var rerr *reader.Error
	return errors.As(err, &rerr) && rerr.Root
}

func compile(opts *Options, stats bool) (*options.Normalized, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.Stats, o.WithFileTypes = stats, false
	return options.Normalize(&o, fsys.OS{}, false)
}

func chunkPaths(chunks []Entry) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Path
	}
	return out
}

func chunkStats(chunks []Entry) []*Stats {
	out := make([]*Stats, len(chunks))
	for i, c := range chunks {
		out[i] = c.Stats
	}
	return out
}
