package reader

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
	"github.com/michaelscutari/readdir/internal/iterate"
	"github.com/michaelscutari/readdir/internal/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFS struct {
	dirs   map[string][]string
	files  map[string]bool
	links  map[string]string
	failRD map[string]error
	failST map[string]error
	lstats atomic.Int64
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		dirs: map[string][]string{
			"root":                                 {"a.txt", "sub", "broken"},
			filepath.Join("root", "sub"):           {"b.txt", "deeper"},
			filepath.Join("root", "sub", "deeper"): {"c.txt"},
		},
		files: map[string]bool{
			filepath.Join("root", "a.txt"):                  true,
			filepath.Join("root", "sub", "b.txt"):           true,
			filepath.Join("root", "sub", "deeper", "c.txt"): true,
		},
		links: map[string]string{
			filepath.Join("root", "broken"): "",
		},
		failRD: map[string]error{},
		failST: map[string]error{},
	}
}

func (f *fakeFS) stat(path string) (*entry.Stats, error) {
	if err := f.failST[path]; err != nil {
		return nil, err
	}
	if target, ok := f.links[path]; ok {
		if target == "" {
			return nil, fs.ErrNotExist
		}
		return f.stat(target)
	}
	if _, ok := f.dirs[path]; ok {
		return &entry.Stats{Name: filepath.Base(path), Mode: fs.ModeDir | 0o755}, nil
	}
	if f.files[path] {
		return &entry.Stats{Name: filepath.Base(path), Mode: 0o644, Size: 1}, nil
	}
	return nil, fs.ErrNotExist
}

func (f *fakeFS) funcs() fsys.Funcs {
	return fsys.Funcs{
		ReadDir: func(path string) ([]string, error) {
			if err := f.failRD[path]; err != nil {
				return nil, err
			}
			names, ok := f.dirs[path]
			if !ok {
				return nil, fs.ErrNotExist
			}
			return append([]string(nil), names...), nil
		},
		Stat: f.stat,
		Lstat: func(path string) (*entry.Stats, error) {
			f.lstats.Add(1)
			if _, ok := f.links[path]; ok {
				return &entry.Stats{Name: filepath.Base(path), Mode: fs.ModeSymlink | 0o777}, nil
			}
			return f.stat(path)
		},
	}
}

type collector struct {
	mu     sync.Mutex
	chunks []entry.Chunk
	errs   []error
	ends   int
	done   chan struct{}
}

func newCollector() *collector {
	return &collector{done: make(chan struct{})}
}

func (c *collector) handlers() Handlers {
	return Handlers{
		Data: func(ch entry.Chunk) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.chunks = append(c.chunks, ch)
			return true
		},
		Error: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errs = append(c.errs, err)
		},
		End: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.ends++
			if c.ends == 1 {
				close(c.done)
			}
		},
	}
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.chunks))
	for _, ch := range c.chunks {
		out = append(out, ch.Path)
	}
	sort.Strings(out)
	return out
}

func normalize(t *testing.T, f *fakeFS, opts options.Options) *options.Normalized {
	t.Helper()
	opts.FS = f.funcs()
	opts.Sep = "/"
	n, err := options.Normalize(&opts, nil, false)
	require.NoError(t, err)
	return n
}

func TestReaderRootOnly(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{}), iterate.Sequential{}, c.handlers())

	r.Pull()

	assert.Equal(t, []string{"a.txt", "broken", "sub"}, c.paths())
	assert.Empty(t, c.errs)
	assert.Equal(t, 1, c.ends)
	assert.True(t, r.Ended())
	assert.Zero(t, f.lstats.Load(), "path-only traversal should not resolve entries")
}

func TestReaderDeep(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: true}), iterate.Sequential{}, c.handlers())

	r.Pull()

	assert.Equal(t, []string{"a.txt", "broken", "sub", "sub/b.txt", "sub/deeper", "sub/deeper/c.txt"}, c.paths())
	assert.Empty(t, c.errs)
	assert.Equal(t, 1, c.ends)
}

func TestReaderDepthLimit(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: 1}), iterate.Sequential{}, c.handlers())

	r.Pull()

	assert.Equal(t, []string{"a.txt", "broken", "sub", "sub/b.txt", "sub/deeper"}, c.paths())
}

func TestReaderParallel(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: true}), iterate.Parallel{}, c.handlers())

	r.Pull()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("traversal did not end")
	}
	assert.Equal(t, []string{"a.txt", "broken", "sub", "sub/b.txt", "sub/deeper", "sub/deeper/c.txt"}, c.paths())
	assert.Equal(t, 1, c.ends)

	r.Pull()
	assert.Equal(t, 1, c.ends, "end must be signalled once")
}

func TestReaderBackpressure(t *testing.T) {
	f := newFakeFS()
	var delivered []string
	ends := 0
	r := New("root", normalize(t, f, options.Options{}), iterate.Sequential{}, Handlers{
		Data: func(ch entry.Chunk) bool {
			delivered = append(delivered, ch.Path)
			return false
		},
		End: func() { ends++ },
	})

	r.Pull()
	require.Len(t, delivered, 1)
	st := r.State()
	assert.Equal(t, 2, st.Buffered)
	assert.False(t, st.Demand)
	assert.Zero(t, ends)

	r.Pull()
	require.Len(t, delivered, 2)
	assert.Zero(t, ends)

	r.Pull()
	require.Len(t, delivered, 3)
	assert.Equal(t, 1, ends)
	assert.True(t, r.State().Ended)
}

func TestReaderBackpressureStopsDirectoryReads(t *testing.T) {
	f := newFakeFS()
	var delivered int
	r := New("root", normalize(t, f, options.Options{Deep: true}), iterate.Sequential{}, Handlers{
		Data: func(entry.Chunk) bool {
			delivered++
			return false
		},
	})

	r.Pull()

	st := r.State()
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, st.Queued, "sub should stay queued while demand is closed")
	assert.Zero(t, st.Pending)
}

func TestReaderRootError(t *testing.T) {
	f := newFakeFS()
	f.failRD["root"] = fs.ErrPermission
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: true}), iterate.Sequential{}, c.handlers())

	r.Pull()

	require.Len(t, c.errs, 1)
	var rerr *Error
	require.ErrorAs(t, c.errs[0], &rerr)
	assert.True(t, rerr.Root)
	assert.Equal(t, OpReadDir, rerr.Op)
	assert.ErrorIs(t, rerr, fs.ErrPermission)
	assert.Empty(t, c.chunks)
	assert.Equal(t, 1, c.ends)
}

func TestReaderSoftErrors(t *testing.T) {
	f := newFakeFS()
	f.failRD[filepath.Join("root", "sub")] = fs.ErrPermission
	f.failST[filepath.Join("root", "a.txt")] = errors.New("io failure")
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: true}), iterate.Sequential{}, c.handlers())

	r.Pull()

	assert.Equal(t, []string{"broken", "sub"}, c.paths())
	require.Len(t, c.errs, 2)
	ops := map[string]bool{}
	for _, err := range c.errs {
		var rerr *Error
		require.ErrorAs(t, err, &rerr)
		assert.False(t, rerr.Root)
		ops[rerr.Op] = true
	}
	assert.Equal(t, map[string]bool{OpReadDir: true, OpStat: true}, ops)
	assert.Equal(t, 1, c.ends)
}

func TestReaderPredicatePanic(t *testing.T) {
	f := newFakeFS()
	var calls atomic.Int64
	filter := func(s *entry.Stats) bool {
		if calls.Add(1) == 3 {
			panic("boom")
		}
		return true
	}
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: true, Filter: filter}), iterate.Sequential{}, c.handlers())

	r.Pull()

	require.Len(t, c.errs, 1)
	var rerr *Error
	require.ErrorAs(t, c.errs[0], &rerr)
	assert.Equal(t, OpFilter, rerr.Op)
	var perr *fsys.PanicError
	require.ErrorAs(t, rerr, &perr)
	assert.Contains(t, rerr.Error(), "boom")
	assert.Len(t, c.chunks, 5)
	assert.Equal(t, 1, c.ends)
}

func TestReaderRecursePredicate(t *testing.T) {
	f := newFakeFS()
	deep := func(s *entry.Stats) bool { return s.Path != "sub/deeper" }
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: deep}), iterate.Sequential{}, c.handlers())

	r.Pull()

	assert.Equal(t, []string{"a.txt", "broken", "sub", "sub/b.txt", "sub/deeper"}, c.paths())
}

func TestReaderClassification(t *testing.T) {
	f := newFakeFS()
	var files, dirs, links []string
	c := newCollector()
	h := c.handlers()
	h.File = func(ch entry.Chunk) { files = append(files, ch.Path) }
	h.Directory = func(ch entry.Chunk) { dirs = append(dirs, ch.Path) }
	h.Symlink = func(ch entry.Chunk) { links = append(links, ch.Path) }
	r := New("root", normalize(t, f, options.Options{}), iterate.Sequential{}, h)

	r.Pull()

	assert.Equal(t, []string{"a.txt"}, files)
	assert.Equal(t, []string{"sub"}, dirs)
	assert.Equal(t, []string{"broken"}, links)
	for _, ch := range c.chunks {
		assert.Nil(t, ch.Stats, "stats are only attached when requested")
		assert.True(t, ch.Classified())
	}
}

func TestReaderStatsPayload(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	r := New("root", normalize(t, f, options.Options{Deep: true, Stats: true}), iterate.Sequential{}, c.handlers())

	r.Pull()

	require.Len(t, c.chunks, 6)
	for _, ch := range c.chunks {
		require.NotNil(t, ch.Stats)
		assert.Equal(t, ch.Path, ch.Stats.Path)
		if ch.Path == "sub/deeper/c.txt" {
			assert.Equal(t, 2, ch.Stats.Depth)
			assert.Equal(t, "c.txt", ch.Stats.Name)
		}
	}
}

func TestReaderHandlerPanic(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	h := c.handlers()
	h.File = func(entry.Chunk) { panic("handler failed") }
	r := New("root", normalize(t, f, options.Options{}), iterate.Sequential{}, h)

	r.Pull()

	require.Len(t, c.errs, 1)
	var rerr *Error
	require.ErrorAs(t, c.errs[0], &rerr)
	assert.Equal(t, OpEmit, rerr.Op)
	assert.Equal(t, "a.txt", rerr.Path)
	assert.Len(t, c.chunks, 3)
	assert.Equal(t, 1, c.ends)
}

func TestReaderEndHandlerPanicReleasesLock(t *testing.T) {
	f := newFakeFS()
	c := newCollector()
	h := c.handlers()
	h.End = func() { panic("end failed") }
	r := New("root", normalize(t, f, options.Options{}), iterate.Sequential{}, h)

	r.Pull()

	require.Len(t, c.errs, 1)
	var rerr *Error
	require.ErrorAs(t, c.errs[0], &rerr)
	assert.Equal(t, OpEmit, rerr.Op)
	var perr *fsys.PanicError
	assert.ErrorAs(t, rerr, &perr)

	st := r.State()
	assert.True(t, st.Ended)
	assert.True(t, r.Ended())
}

func TestReaderErrorHandlerPanicIsContained(t *testing.T) {
	f := newFakeFS()
	f.failST[filepath.Join("root", "a.txt")] = errors.New("stat failed")
	c := newCollector()
	h := c.handlers()
	h.Error = func(error) { panic("error handler failed") }
	r := New("root", normalize(t, f, options.Options{Deep: true}), iterate.Sequential{}, h)

	assert.NotPanics(t, r.Pull)
	assert.Len(t, c.chunks, 5)
	assert.Equal(t, 1, c.ends)
	assert.True(t, r.State().Ended)
}

func TestReaderEmptyRoot(t *testing.T) {
	f := newFakeFS()
	f.dirs["empty"] = nil
	c := newCollector()
	r := New("empty", normalize(t, f, options.Options{Deep: true}), iterate.Sequential{}, c.handlers())

	r.Pull()

	assert.Empty(t, c.chunks)
	assert.Equal(t, 1, c.ends)
}
