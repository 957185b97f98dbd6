package fsys

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSReadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))

	names, err := OS{}.ReadDir(root)
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"a.txt", "sub"}, names)

	_, err = OS{}.ReadDir(filepath.Join(root, "missing"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOSStatAndLstat(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	require.NoError(t, os.Mkdir(target, 0755))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(target, link))

	lst, err := OS{}.Lstat(link)
	require.NoError(t, err)
	assert.True(t, lst.IsSymlink())
	assert.False(t, lst.IsDir())

	st, err := OS{}.Stat(link)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestMergeOverridesOnlyProvidedFuncs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.txt"), nil, 0644))

	called := 0
	merged := Merge(OS{}, Funcs{
		ReadDir: func(path string) ([]string, error) {
			called++
			return []string{"fake.txt"}, nil
		},
	})

	names, err := merged.ReadDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"fake.txt"}, names)
	assert.Equal(t, 1, called)

	st, err := merged.Lstat(filepath.Join(root, "real.txt"))
	require.NoError(t, err)
	assert.True(t, st.IsFile())
}

func TestMergeContainsPanics(t *testing.T) {
	merged := Merge(nil, Funcs{
		Stat: func(path string) (*entry.Stats, error) {
			panic("boom")
		},
	})

	_, err := merged.Stat("whatever")
	require.Error(t, err)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", err.Error())
}

func TestMergeRejectsEmptyStats(t *testing.T) {
	merged := Merge(nil, Funcs{
		Lstat: func(path string) (*entry.Stats, error) { return nil, nil },
	})
	_, err := merged.Lstat("x")
	assert.ErrorIs(t, err, ErrNoStats)
}

func TestFromFS(t *testing.T) {
	mfs := fstest.MapFS{
		"a.txt":     {Data: []byte("a")},
		"sub/b.txt": {Data: []byte("bb")},
	}
	b := FromFS(mfs)

	names, err := b.ReadDir(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub"}, names)

	p := Join(b, "sub", "b.txt")
	assert.Equal(t, "sub/b.txt", p)

	st, err := b.Lstat(p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Size)
	assert.True(t, st.IsFile())

	st, err = b.Stat("sub")
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestJoinDefaultsToFilepath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b"), Join(OS{}, "a", "b"))
	assert.Equal(t, filepath.Join("a", "b"), Join(Merge(OS{}, Funcs{}), "a", "b"))
}
