// Package options validates traversal options and compiles them into the
// immutable form the reader consumes.
package options

import (
	"io/fs"
	"math"
	"path/filepath"
	"reflect"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
	"github.com/michaelscutari/readdir/internal/pathutil"
)

// Unbounded is the MaxDepth of a traversal without a depth limit.
const Unbounded = math.MaxInt

// Predicate decides whether an entry is recursed into or reported.
type Predicate func(s *entry.Stats) (bool, error)

// Options configures a traversal.
type Options struct {
	// Filter selects reported entries: a glob pattern, a *regexp.Regexp,
	// a bool, or a predicate function. Nil reports everything.
	Filter any

	// Deep selects recursion: a bool, a non-negative depth, a glob
	// pattern, a *regexp.Regexp, or a predicate function. Nil means the
	// root directory only.
	Deep any

	// Stats requests *Stats payloads instead of path strings.
	Stats bool

	// WithFileTypes is an alias for Stats.
	WithFileTypes bool

	// Sep is the separator used in logical paths. Empty means the OS separator.
	Sep string

	// BasePath prefixes every logical path.
	BasePath string

	// FS overrides the filesystem binding: a fsys.FileSystem, fsys.Funcs,
	// *fsys.Funcs, or an io/fs.FS.
	FS any
}

// Normalized is the compiled form of Options.
type Normalized struct {
	MaxDepth          int
	Recurse           Predicate
	RecurseNeedsStats bool
	Filter            Predicate
	FilterNeedsStats  bool
	Sep               string
	BasePath          string
	ReturnStats       bool
	Emit              bool
	FS                fsys.FileSystem
}

// Normalize validates opts and compiles them against the base binding.
// It never touches the filesystem.
func Normalize(opts *Options, base fsys.FileSystem, emit bool) (*Normalized, error) {
	if opts == nil {
		opts = &Options{}
	}
	if base == nil {
		base = fsys.OS{}
	}

	n := &Normalized{
		Sep:         opts.Sep,
		ReturnStats: opts.Stats || opts.WithFileTypes,
		Emit:        emit,
	}
	if n.Sep == "" {
		n.Sep = string(filepath.Separator)
	}
	n.BasePath = pathutil.WithTrailingSep(opts.BasePath, n.Sep)

	var err error
	if n.MaxDepth, n.Recurse, n.RecurseNeedsStats, err = compileDeep(opts.Deep, n.Sep); err != nil {
		return nil, err
	}
	if n.Filter, n.FilterNeedsStats, err = compileFilter(opts.Filter, n.Sep); err != nil {
		return nil, err
	}
	if n.FS, err = compileFS(opts.FS, base); err != nil {
		return nil, err
	}
	return n, nil
}

// NeedsStats reports whether entries found at depth must be resolved.
func (n *Normalized) NeedsStats(depth int, classify bool) bool {
	return depth < n.MaxDepth ||
		classify ||
		n.ReturnStats ||
		n.RecurseNeedsStats ||
		n.FilterNeedsStats
}

func compileDeep(v any, sep string) (int, Predicate, bool, error) {
	const msg = "must be a boolean, number, function, regular expression, or glob pattern"

	switch d := v.(type) {
	case nil:
		return 0, nil, false, nil
	case bool:
		if d {
			return Unbounded, nil, false, nil
		}
		return 0, nil, false, nil
	case string:
		if d == "" {
			return 0, nil, false, typeError("deep", msg)
		}
		pred, err := globPredicate("deep", d, sep)
		return Unbounded, pred, false, err
	case *regexp.Regexp:
		if d == nil {
			return 0, nil, false, typeError("deep", msg)
		}
		return Unbounded, regexpPredicate(d, sep), false, nil
	}

	if pred, ok := funcPredicate(v); ok {
		return Unbounded, pred, true, nil
	}
	if depth, ok, err := depthValue(v); ok {
		return depth, nil, false, err
	}
	return 0, nil, false, typeError("deep", msg)
}

// CompileFilter compiles a Filter value on its own so callers can combine it
// with further conditions. An empty sep means the OS separator, as in
// Normalize. A nil value yields a nil Predicate.
func CompileFilter(v any, sep string) (Predicate, error) {
	if sep == "" {
		sep = string(filepath.Separator)
	}
	pred, _, err := compileFilter(v, sep)
	return pred, err
}

func compileFilter(v any, sep string) (Predicate, bool, error) {
	const msg = "must be a boolean, function, regular expression, or glob pattern"

	switch f := v.(type) {
	case nil:
		return nil, false, nil
	case bool:
		return func(*entry.Stats) (bool, error) { return f, nil }, false, nil
	case string:
		if f == "" {
			return nil, false, typeError("filter", msg)
		}
		pred, err := globPredicate("filter", f, sep)
		return pred, false, err
	case *regexp.Regexp:
		if f == nil {
			return nil, false, typeError("filter", msg)
		}
		return regexpPredicate(f, sep), false, nil
	}

	if pred, ok := funcPredicate(v); ok {
		return pred, true, nil
	}
	return nil, false, typeError("filter", msg)
}

func compileFS(v any, base fsys.FileSystem) (fsys.FileSystem, error) {
	switch f := v.(type) {
	case nil:
		return base, nil
	case fsys.Funcs:
		return fsys.Merge(base, f), nil
	case *fsys.Funcs:
		if f == nil {
			return base, nil
		}
		return fsys.Merge(base, *f), nil
	case fsys.FileSystem:
		return f, nil
	case fs.FS:
		return fsys.FromFS(f), nil
	}
	return nil, typeError("fs", "must be a filesystem binding, Funcs, or fs.FS")
}

func funcPredicate(v any) (Predicate, bool) {
	switch fn := v.(type) {
	case Predicate:
		return fn, fn != nil
	case func(*entry.Stats) (bool, error):
		return fn, fn != nil
	case func(*entry.Stats) bool:
		if fn == nil {
			return nil, false
		}
		return func(s *entry.Stats) (bool, error) { return fn(s), nil }, true
	}
	return nil, false
}

// depthValue accepts any integer kind, and floats holding an integral value.
func depthValue(v any) (int, bool, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 {
			return 0, true, rangeError("deep", "must be a positive number")
		}
		return clampDepth(uint64(n)), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return clampDepth(rv.Uint()), true, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || f < 0 {
			return 0, true, rangeError("deep", "must be a positive number")
		}
		if math.IsInf(f, 1) {
			return Unbounded, true, nil
		}
		if math.Floor(f) != f {
			return 0, true, rangeError("deep", "must be an integer")
		}
		if f >= float64(Unbounded) {
			return Unbounded, true, nil
		}
		return int(f), true, nil
	}
	return 0, false, nil
}

func clampDepth(n uint64) int {
	if n >= uint64(Unbounded) {
		return Unbounded
	}
	return int(n)
}

func globPredicate(option, pattern, sep string) (Predicate, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &Error{Option: option, Kind: KindType, Msg: "is not a valid glob pattern", Err: doublestar.ErrBadPattern}
	}
	return func(s *entry.Stats) (bool, error) {
		return doublestar.Match(pattern, pathutil.ToSlash(s.Path, sep))
	}, nil
}

func regexpPredicate(re *regexp.Regexp, sep string) Predicate {
	return func(s *entry.Stats) (bool, error) {
		if re.MatchString(s.Path) {
			return true, nil
		}
		posix := pathutil.ToSlash(s.Path, sep)
		return posix != s.Path && re.MatchString(posix), nil
	}
}
