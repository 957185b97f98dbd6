package tui

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"

	_ "modernc.org/sqlite"
)

func snapshotDB(t *testing.T, scanErrors ...entry.ScanError) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.ForgetCache(database)
		database.Close()
	})
	require.NoError(t, db.InitSchema(database))

	insert := func(path, name, parent string, kind entry.Kind, symlink bool, size int64, depth int, inode uint64) {
		_, err := database.Exec(`INSERT INTO entries (path, name, parent, kind, symlink, size, blocks, mtime, depth, dev_id, inode)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 9, ?)`, path, name, parent, kind, symlink, size, size, time.Now().Unix(), depth, inode)
		require.NoError(t, err)
	}
	insert("/r", "r", "", entry.KindDir, false, 0, 0, 1)
	insert("/r/big", "big", "/r", entry.KindDir, false, 0, 1, 2)
	insert("/r/big/blob", "blob", "/r/big", entry.KindFile, false, 900, 2, 3)
	insert("/r/small.txt", "small.txt", "/r", entry.KindFile, false, 100, 1, 4)
	insert("/r/link", "link", "/r", entry.KindDir, true, 0, 1, 5)
	insert("/r/dangling", "dangling", "/r", entry.KindSymlink, true, 0, 1, 6)

	for _, se := range scanErrors {
		_, err := database.Exec(`INSERT INTO scan_errors (path, op, message) VALUES (?, ?, ?)`, se.Path, se.Op, se.Message)
		require.NoError(t, err)
	}

	require.NoError(t, db.WriteRollups(database, []entry.Rollup{
		{Path: "/r", TotalSize: 1000, TotalBlocks: 1000, TotalFiles: 2, TotalDirs: 1},
		{Path: "/r/big", TotalSize: 900, TotalBlocks: 900, TotalFiles: 1},
	}, 10))
	require.NoError(t, db.InitScanMeta(database, "id", "/r", time.Now()))
	require.NoError(t, db.FinalizeScanMeta(database, time.Now(), int64(len(scanErrors))))
	return database
}

// send applies msg and runs any resulting command synchronously.
func send(t *testing.T, m *Model, msg tea.Msg) {
	t.Helper()
	_, cmd := m.Update(msg)
	if cmd != nil {
		if next := cmd(); next != nil {
			m.Update(next)
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func open(t *testing.T, database *sql.DB) *Model {
	t.Helper()
	m := NewModel(database)
	m.Update(m.Init()())
	require.NoError(t, m.err)
	m.width, m.height = 110, 30
	return m
}

func names(m *Model) []string {
	out := make([]string, len(m.visible))
	for i, e := range m.visible {
		out[i] = e.Name
	}
	return out
}

func TestModelLoadsRoot(t *testing.T) {
	m := open(t, snapshotDB(t))
	assert.Equal(t, "/r", m.dir.path)
	assert.Equal(t, []string{"big", "small.txt", "dangling", "link"}, names(m))
	require.NotNil(t, m.dir.rollup)
	assert.EqualValues(t, 1000, m.dir.rollup.TotalSize)

	view := m.View()
	assert.Contains(t, view, "big/")
	assert.Contains(t, view, "link@")
	assert.Contains(t, view, "dangling@")
	assert.Contains(t, view, " 90%")
	assert.Contains(t, view, "[type all]")
	assert.NotContains(t, m.banner(), "errors", "clean scans do not advertise errors")
}

func TestModelDetailShowsIdentity(t *testing.T) {
	m := open(t, snapshotDB(t))

	view := m.View()
	assert.Contains(t, view, "/r/big")
	assert.Contains(t, view, "dir · symlink no · depth 1 · dev 9 · inode 2")
	assert.Contains(t, view, "subtree 900 B in 1 files")

	for range 3 {
		send(t, m, keyMsg("down"))
	}
	sel, ok := m.selected()
	require.True(t, ok)
	require.Equal(t, "link", sel.Name)
	assert.Contains(t, m.View(), "dir · symlink yes, not followed · depth 1 · dev 9 · inode 5")
	assert.NotContains(t, m.View(), "subtree")
}

func TestModelOpenAndClose(t *testing.T) {
	m := open(t, snapshotDB(t))

	send(t, m, keyMsg("enter"))
	require.NoError(t, m.err)
	assert.Equal(t, "/r/big", m.dir.path)
	assert.Equal(t, []string{"blob"}, names(m))
	assert.Contains(t, m.View(), "file · symlink no · depth 2")

	send(t, m, keyMsg("backspace"))
	assert.Equal(t, "/r", m.dir.path)

	send(t, m, keyMsg("backspace"))
	assert.Equal(t, "/r", m.dir.path, "cannot leave the scan root")
}

func TestModelDoesNotOpenSymlinkOrFile(t *testing.T) {
	m := open(t, snapshotDB(t))

	for range 3 {
		send(t, m, keyMsg("down"))
		send(t, m, keyMsg("enter"))
		assert.Equal(t, "/r", m.dir.path)
	}
	assert.NoError(t, m.err)
}

func TestModelTypeFilterCyclesKinds(t *testing.T) {
	m := open(t, snapshotDB(t))

	send(t, m, keyMsg("t"))
	assert.Equal(t, "dir", m.kindLabel())
	assert.Equal(t, []string{"big", "link"}, names(m), "resolved links keep their target's kind")

	send(t, m, keyMsg("t"))
	assert.Equal(t, []string{"small.txt"}, names(m))

	send(t, m, keyMsg("t"))
	assert.Equal(t, []string{"dangling"}, names(m))
	assert.Contains(t, m.View(), "[type symlink]")

	send(t, m, keyMsg("t"))
	assert.Empty(t, names(m))
	assert.Contains(t, m.View(), "no other entries here")

	send(t, m, keyMsg("t"))
	assert.Equal(t, "all", m.kindLabel())
	assert.Len(t, m.visible, 4)
}

func TestModelTypeFilterSurvivesNavigation(t *testing.T) {
	m := open(t, snapshotDB(t))

	send(t, m, keyMsg("t"))
	send(t, m, keyMsg("enter"))
	assert.Equal(t, "/r/big", m.dir.path)
	assert.Empty(t, names(m), "big holds only a file")

	send(t, m, keyMsg("backspace"))
	assert.Equal(t, []string{"big", "link"}, names(m))
}

func TestModelScanErrorsPane(t *testing.T) {
	m := open(t, snapshotDB(t,
		entry.ScanError{Path: "/r/locked", Op: "readdir", Message: "permission denied"},
		entry.ScanError{Path: "/r/gone", Op: "stat", Message: "no such file or directory"},
	))
	assert.Contains(t, m.View(), "2 errors")

	send(t, m, keyMsg("e"))
	require.Equal(t, paneErrors, m.pane)
	require.Len(t, m.scanErrors, 2)
	view := m.View()
	assert.Contains(t, view, "2 shown of 2 recorded")
	assert.Contains(t, view, "permission denied")
	assert.Contains(t, view, "/r/gone")

	send(t, m, keyMsg("down"))
	send(t, m, keyMsg("down"))
	assert.Equal(t, 1, m.errCursor)

	send(t, m, keyMsg("esc"))
	assert.Equal(t, paneListing, m.pane)
}

func TestModelScanErrorsPaneEmpty(t *testing.T) {
	m := open(t, snapshotDB(t))

	send(t, m, keyMsg("e"))
	require.Equal(t, paneErrors, m.pane)
	assert.Contains(t, m.View(), "no errors were recorded")

	send(t, m, keyMsg("e"))
	assert.Equal(t, paneListing, m.pane)
}

func TestModelSortAndFilter(t *testing.T) {
	m := open(t, snapshotDB(t))

	send(t, m, keyMsg("n"))
	assert.Equal(t, SortByName, m.sort)
	assert.Equal(t, []string{"big", "dangling", "link", "small.txt"}, names(m))
	assert.Contains(t, m.View(), "NAME*")

	send(t, m, keyMsg("/"))
	require.True(t, m.typing)
	for _, r := range "SM" {
		send(t, m, keyMsg(string(r)))
	}
	assert.Equal(t, []string{"small.txt"}, names(m))
	assert.Contains(t, m.View(), "[match SM_]")

	send(t, m, keyMsg("backspace"))
	assert.Equal(t, "S", m.match)

	send(t, m, keyMsg("enter"))
	assert.False(t, m.typing)
	assert.Equal(t, "S", m.match)

	send(t, m, keyMsg("/"))
	send(t, m, keyMsg("esc"))
	assert.Empty(t, m.match)
	assert.Len(t, m.visible, 4)
}

func TestShareBar(t *testing.T) {
	assert.True(t, strings.HasSuffix(shareBar(0, 0), "  0%"))
	assert.True(t, strings.HasSuffix(shareBar(1, 1000), "  0%"))
	assert.Contains(t, shareBar(1, 1000), "▰")
	assert.True(t, strings.HasSuffix(shareBar(50, 100), " 50%"))
	assert.True(t, strings.HasSuffix(shareBar(200, 100), "100%"))
}

func TestElideAndClip(t *testing.T) {
	assert.Equal(t, "abcdef", elide("abcdef", 10))
	assert.Equal(t, "ab…ef", elide("abcdef", 5))
	assert.Equal(t, "abcd…", clip("abcdef", 5))
	assert.Equal(t, "ünï…", clip("ünïcode", 4))
}
