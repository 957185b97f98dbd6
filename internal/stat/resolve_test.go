package stat

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	st, err := Resolve(fsys.OS{}, path)
	require.NoError(t, err)
	assert.True(t, st.IsFile())
	assert.False(t, st.IsSymlink())
	assert.Equal(t, int64(3), st.Size)
}

func TestResolveSymlinkToDirectory(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	require.NoError(t, os.Mkdir(target, 0755))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(target, link))

	st, err := Resolve(fsys.OS{}, link)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.True(t, st.IsSymlink())
}

func TestResolveSymlinkToFileUsesTargetSize(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("0123456789"), 0644))
	link := filepath.Join(root, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	st, err := Resolve(fsys.OS{}, link)
	require.NoError(t, err)
	assert.True(t, st.IsFile())
	assert.True(t, st.IsSymlink())
	assert.Equal(t, int64(10), st.Size)
}

func TestResolveBrokenSymlinkFallsBackToLink(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "broken")
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), link))

	st, err := Resolve(fsys.OS{}, link)
	require.NoError(t, err)
	assert.True(t, st.IsSymlink())
	assert.False(t, st.IsDir())
	assert.False(t, st.IsFile())
}

func TestResolveMissingPath(t *testing.T) {
	_, err := Resolve(fsys.OS{}, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestResolveContainsBindingPanics(t *testing.T) {
	binding := fsys.Merge(fsys.OS{}, fsys.Funcs{
		Lstat: func(string) (*entry.Stats, error) {
			return &entry.Stats{Mode: fs.ModeSymlink}, nil
		},
		Stat: func(string) (*entry.Stats, error) {
			panic("target stat exploded")
		},
	})

	st, err := Resolve(binding, "link")
	require.NoError(t, err)
	assert.True(t, st.IsSymlink())
	assert.False(t, st.IsDir())
}
