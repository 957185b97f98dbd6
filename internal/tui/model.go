// Package tui browses a snapshot database interactively.
package tui

import (
	"database/sql"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"
)

const (
	listLimit  = 1000
	errorLimit = 500
)

// SortColumn represents the current sort field.
type SortColumn int

const (
	SortBySize SortColumn = iota
	SortByDisk
	SortByName
	SortByFiles
	SortByMtime
)

func (s SortColumn) String() string {
	switch s {
	case SortByDisk:
		return "disk"
	case SortByName:
		return "name"
	case SortByFiles:
		return "files"
	case SortByMtime:
		return "mtime"
	default:
		return "size"
	}
}

// kindSteps is the order the type filter cycles through. The first step
// shows every kind. The filter applies to the stored kind column, so a link
// whose target resolved is listed under the target's kind.
var kindSteps = []*entry.Kind{nil, kindRef(entry.KindDir), kindRef(entry.KindFile), kindRef(entry.KindSymlink), kindRef(entry.KindOther)}

func kindRef(k entry.Kind) *entry.Kind { return &k }

type pane int

const (
	paneListing pane = iota
	paneErrors
)

// listing is one loaded directory.
type listing struct {
	path    string
	rollup  *entry.Rollup
	entries []db.DisplayEntry
}

// Model holds the TUI state.
type Model struct {
	db   *sql.DB
	keys KeyMap
	meta *entry.ScanMeta

	dir     listing
	visible []db.DisplayEntry
	cursor  int
	sort    SortColumn
	kindAt  int
	match   string
	typing  bool

	pane       pane
	scanErrors []entry.ScanError
	errCursor  int

	width  int
	height int
	err    error
}

// NewModel creates a new TUI model.
func NewModel(database *sql.DB) *Model {
	return &Model{
		db:   database,
		keys: DefaultKeyMap(),
		sort: SortBySize,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.openSnapshot
}

type snapshotOpenedMsg struct {
	meta *entry.ScanMeta
	dir  listing
	err  error
}

type dirLoadedMsg struct {
	dir listing
	err error
}

type errorsLoadedMsg struct {
	errs []entry.ScanError
	err  error
}

func (m *Model) openSnapshot() tea.Msg {
	meta, err := db.GetScanMeta(m.db)
	if err != nil {
		return snapshotOpenedMsg{err: err}
	}
	dir, err := m.queryDir(meta.RootPath)
	return snapshotOpenedMsg{meta: meta, dir: dir, err: err}
}

func (m *Model) loadDir(path string) tea.Cmd {
	return func() tea.Msg {
		dir, err := m.queryDir(path)
		return dirLoadedMsg{dir: dir, err: err}
	}
}

func (m *Model) queryDir(path string) (listing, error) {
	entries, err := db.QueryChildren(m.db, db.ChildQuery{
		Parent: path,
		Sort:   m.sort.String(),
		Kind:   kindSteps[m.kindAt],
		Limit:  listLimit,
	})
	if err != nil {
		return listing{}, err
	}
	rollup, err := db.GetRollup(m.db, path)
	if err != nil {
		return listing{}, err
	}
	return listing{path: path, rollup: rollup, entries: entries}, nil
}

func (m *Model) loadScanErrors() tea.Msg {
	errs, err := db.LoadErrors(m.db, errorLimit)
	return errorsLoadedMsg{errs: errs, err: err}
}

// kindLabel names the active type filter.
func (m *Model) kindLabel() string {
	if k := kindSteps[m.kindAt]; k != nil {
		return k.String()
	}
	return "all"
}

func (m *Model) helpLine() string {
	switch {
	case m.pane == paneErrors:
		return m.keys.ErrorsHelpText()
	case m.typing:
		return m.keys.FilterHelpText()
	}
	return m.keys.HelpText()
}

func (m *Model) showDir(dir listing) {
	m.dir = dir
	m.match = ""
	m.typing = false
	m.refilter()
}

// refilter narrows the loaded directory to names containing the match text.
func (m *Model) refilter() {
	m.cursor = 0
	if m.match == "" {
		m.visible = m.dir.entries
		return
	}
	needle := strings.ToLower(m.match)
	m.visible = make([]db.DisplayEntry, 0, len(m.dir.entries))
	for _, e := range m.dir.entries {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			m.visible = append(m.visible, e)
		}
	}
}

func (m *Model) selected() (db.DisplayEntry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return db.DisplayEntry{}, false
	}
	return m.visible[m.cursor], true
}
