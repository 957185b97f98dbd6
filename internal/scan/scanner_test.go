package scan

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/readdir"
	"github.com/michaelscutari/readdir/internal/config"
	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/logger"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.ForgetCache(database)
		database.Close()
	})
	require.NoError(t, db.InitSchema(database))
	return database
}

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".snapshot", "hourly"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "deep", "f.bin"), []byte("xyz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".snapshot", "hourly", "old"), nil, 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "link-to-a")))
	return root
}

func paths(t *testing.T, database *sql.DB) map[string]entry.Record {
	t.Helper()
	rows, err := database.Query(`SELECT path, parent, kind, symlink, size, depth FROM entries`)
	require.NoError(t, err)
	defer rows.Close()

	out := map[string]entry.Record{}
	for rows.Next() {
		var r entry.Record
		require.NoError(t, rows.Scan(&r.Path, &r.Parent, &r.Kind, &r.Symlink, &r.Size, &r.Depth))
		out[r.Path] = r
	}
	require.NoError(t, rows.Err())
	return out
}

func TestScannerRecordsTree(t *testing.T) {
	root := makeTree(t)
	database := openDB(t)

	s := NewScanner(DefaultOptions().WithScanID("scan-1"), nil)
	require.NoError(t, s.Run(context.Background(), root, database))

	got := paths(t, database)
	require.Contains(t, got, root)
	assert.Equal(t, entry.KindDir, got[root].Kind)
	assert.Equal(t, 0, got[root].Depth)

	f := filepath.Join(root, "a", "deep", "f.bin")
	require.Contains(t, got, f)
	assert.Equal(t, filepath.Join(root, "a", "deep"), got[f].Parent)
	assert.Equal(t, 3, got[f].Depth)
	assert.EqualValues(t, 3, got[f].Size)

	assert.NotContains(t, got, filepath.Join(root, ".snapshot"), "excluded by default")
	assert.NotContains(t, got, filepath.Join(root, ".snapshot", "hourly", "old"))

	link := filepath.Join(root, "link-to-a")
	require.Contains(t, got, link)
	assert.True(t, got[link].Symlink)
	assert.Equal(t, entry.KindDir, got[link].Kind)
	assert.NotContains(t, got, filepath.Join(link, "deep"), "symlinked directories are not entered")

	m, err := db.GetScanMeta(database)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", m.ScanID)
	assert.Equal(t, root, m.RootPath)
	assert.EqualValues(t, 2, m.FileCount)
	assert.False(t, m.EndTime.IsZero())

	p := s.Progress()
	require.NotNil(t, p)
	assert.EqualValues(t, 2, p.Files)
}

func TestScannerTracesDirectories(t *testing.T) {
	root := makeTree(t)
	database := openDB(t)

	var buf bytes.Buffer
	s := NewScanner(DefaultOptions(), logger.NewConsoleLogger(&buf, "trace"))
	require.NoError(t, s.Run(context.Background(), root, database))

	out := buf.String()
	assert.Contains(t, out, "directory "+filepath.Join(root, "a", "deep"))
	assert.NotContains(t, out, "directory "+filepath.Join(root, ".snapshot"))

	buf.Reset()
	quiet := NewScanner(DefaultOptions(), logger.NewConsoleLogger(&buf, "debug"))
	require.NoError(t, quiet.Run(context.Background(), root, openDB(t)))
	assert.NotContains(t, buf.String(), "directory ")
}

func TestScannerFollowSymlinks(t *testing.T) {
	root := makeTree(t)
	database := openDB(t)

	s := NewScanner(DefaultOptions().WithFollowSymlinks(true), nil)
	require.NoError(t, s.Run(context.Background(), root, database))

	got := paths(t, database)
	assert.Contains(t, got, filepath.Join(root, "link-to-a", "deep", "f.bin"))
}

func TestScannerRootMustBeDirectory(t *testing.T) {
	root := makeTree(t)
	database := openDB(t)

	err := NewScanner(nil, nil).Run(context.Background(), filepath.Join(root, "top.txt"), database)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	err = NewScanner(nil, nil).Run(context.Background(), filepath.Join(root, "missing"), database)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestScannerCancelled(t *testing.T) {
	root := makeTree(t)
	database := openDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewScanner(nil, nil).Run(ctx, root, database)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToScanError(t *testing.T) {
	se := toScanError(&readdir.Error{Op: "stat", Path: "/x", Err: fs.ErrPermission})
	assert.Equal(t, entry.ScanError{Path: "/x", Op: "stat", Message: fs.ErrPermission.Error()}, se)

	se = toScanError(errors.New("odd"))
	assert.Equal(t, "scan", se.Op)
}

func TestErrorSinkDropsWhenFullAndIgnoresAfterClose(t *testing.T) {
	var dropped atomic.Int64
	sink := newErrorSink(1, &dropped)

	sink.send(entry.ScanError{Path: "a"})
	sink.send(entry.ScanError{Path: "b"})
	assert.EqualValues(t, 1, dropped.Load())

	sink.close()
	assert.NotPanics(t, func() { sink.send(entry.ScanError{Path: "c"}) })
	sink.close()

	var got []string
	for se := range sink.ch {
		got = append(got, se.Path)
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestFromConfig(t *testing.T) {
	c := config.DefaultConfig().Scan
	c.Exclude = append(c.Exclude, "/node_modules/")
	c.FollowSymlinks = true

	opts, err := FromConfig(c)
	require.NoError(t, err)
	assert.True(t, opts.FollowSymlinks)
	assert.True(t, opts.ShouldExclude("/src/node_modules/x"))
	assert.True(t, opts.ShouldExclude("/data/.snapshot"))

	c.Exclude = []string{"("}
	_, err = FromConfig(c)
	assert.Error(t, err)
}
