package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/readdir"
	"github.com/michaelscutari/readdir/internal/config"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deeper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.go"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deeper", "c.txt"), []byte("c"), 0o644))
	return root
}

func paths(entries []*readdir.Stats) []string {
	out := make([]string, len(entries))
	for i, st := range entries {
		out[i] = st.Path
	}
	slices.Sort(out)
	return out
}

func TestLsOptions(t *testing.T) {
	opts, err := (&lsFlags{deep: "2"}).options()
	require.NoError(t, err)
	assert.Equal(t, 2, opts.Deep)
	assert.True(t, opts.Stats)

	opts, err = (&lsFlags{deep: "true", deepRegex: "^sub"}).options()
	require.NoError(t, err)
	assert.IsType(t, &regexp.Regexp{}, opts.Deep)

	opts, err = (&lsFlags{filter: "**/*.go"}).options()
	require.NoError(t, err)
	assert.Equal(t, "**/*.go", opts.Filter)

	_, err = (&lsFlags{deepRegex: "("}).options()
	assert.Error(t, err)

	_, err = (&lsFlags{filter: "*", filterRegex: "x"}).options()
	assert.Error(t, err)

	_, err = (&lsFlags{kind: "socket"}).options()
	assert.Error(t, err)

	_, err = (&lsFlags{deep: "-1"}).options()
	assert.ErrorIs(t, err, readdir.ErrInvalidOption)
}

func TestListModesAgree(t *testing.T) {
	root := makeTree(t)
	want := []string{"a.txt", "sub", "sub/b.go", "sub/deeper", "sub/deeper/c.txt"}

	for _, mode := range config.Modes {
		t.Run(mode, func(t *testing.T) {
			opts, err := (&lsFlags{deep: "true", sep: "/"}).options()
			require.NoError(t, err)
			got, err := list(context.Background(), root, opts, mode)
			require.NoError(t, err)
			assert.Equal(t, want, paths(got))
		})
	}

	_, err := list(context.Background(), root, &readdir.Options{}, "bogus")
	assert.Error(t, err)
}

func TestListSoftErrorByMode(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "bad", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0o644))
	}
	failing := func() *readdir.Options {
		return &readdir.Options{Stats: true, Filter: func(st *readdir.Stats) (bool, error) {
			if st.Name == "bad" {
				return false, errors.New("cannot decide")
			}
			return true, nil
		}}
	}

	for _, mode := range []string{"sync", "async", "iter"} {
		t.Run(mode, func(t *testing.T) {
			got, err := list(context.Background(), root, failing(), mode)
			require.Error(t, err)
			assert.ErrorIs(t, err, errListingStopped)
			assert.False(t, readdir.IsFatal(err))
			assert.Nil(t, got, "partial listings are not printed")
		})
	}

	got, err := list(context.Background(), root, failing(), "stream")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, paths(got))
}

func TestListTypeAndFilter(t *testing.T) {
	root := makeTree(t)

	opts, err := (&lsFlags{deep: "true", sep: "/", kind: "dir"}).options()
	require.NoError(t, err)
	got, err := list(context.Background(), root, opts, "sync")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "sub/deeper"}, paths(got))

	opts, err = (&lsFlags{deep: "true", sep: "/", kind: "file", filter: "**/*.txt"}).options()
	require.NoError(t, err)
	got, err = list(context.Background(), root, opts, "sync")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/deeper/c.txt"}, paths(got))

	opts, err = (&lsFlags{deep: "true", sep: ":", kind: "file", filter: "sub/**"}).options()
	require.NoError(t, err)
	got, err = list(context.Background(), root, opts, "sync")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub:b.go", "sub:deeper:c.txt"}, paths(got), "globs see posix paths for any separator")

	_, err = (&lsFlags{kind: "file", filter: "[bad"}).options()
	assert.ErrorIs(t, err, readdir.ErrInvalidOption)

	opts, err = (&lsFlags{deep: "1", sep: "/", filterRegex: `\.go$`}).options()
	require.NoError(t, err)
	got, err = list(context.Background(), root, opts, "stream")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/b.go"}, paths(got))
}

func TestListMissingRootIsFatal(t *testing.T) {
	opts, err := (&lsFlags{}).options()
	require.NoError(t, err)
	for _, mode := range config.Modes {
		_, err := list(context.Background(), filepath.Join(t.TempDir(), "missing"), opts, mode)
		assert.True(t, readdir.IsFatal(err), mode)
	}
}

func TestWriteText(t *testing.T) {
	color.NoColor = true
	root := makeTree(t)
	opts, err := (&lsFlags{sep: "/", basePath: "x/"}).options()
	require.NoError(t, err)
	got, err := list(context.Background(), root, opts, "sync")
	require.NoError(t, err)

	var buf bytes.Buffer
	writeText(&buf, got, false)
	assert.Equal(t, "x/a.txt\nx/sub\n", buf.String())

	buf.Reset()
	writeText(&buf, got, true)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "-rw"))
	assert.True(t, strings.HasSuffix(lines[1], "x/sub"))
}

func TestWriteYAML(t *testing.T) {
	root := makeTree(t)
	opts, err := (&lsFlags{sep: "/"}).options()
	require.NoError(t, err)
	got, err := list(context.Background(), root, opts, "sync")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeYAML(&buf, got))
	out := buf.String()
	assert.Contains(t, out, "path: a.txt")
	assert.Contains(t, out, "type: file")
	assert.Contains(t, out, "path: sub")
	assert.Contains(t, out, "type: dir")
}
