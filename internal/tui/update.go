package tui

import (
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/readdir/internal/entry"
)

const pageSize = 10

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case m.pane == paneErrors:
			return m.handleErrorsKey(msg)
		case m.typing:
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotOpenedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.meta = msg.meta
		m.showDir(msg.dir)

	case dirLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.showDir(msg.dir)

	case errorsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.scanErrors = msg.errs
		m.errCursor = 0
		m.pane = paneErrors
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := max(len(m.visible)-1, 0)

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, last)
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = last
	case key.Matches(msg, m.keys.PageUp):
		m.cursor = max(m.cursor-pageSize, 0)
	case key.Matches(msg, m.keys.PageDown):
		m.cursor = min(m.cursor+pageSize, last)

	case key.Matches(msg, m.keys.Open):
		// Links are recorded but never descended into.
		if sel, ok := m.selected(); ok && sel.Kind == entry.KindDir && !sel.Symlink {
			return m, m.loadDir(sel.Path)
		}

	case key.Matches(msg, m.keys.Close):
		if m.meta != nil && m.dir.path != m.meta.RootPath {
			return m, m.loadDir(filepath.Dir(m.dir.path))
		}

	case key.Matches(msg, m.keys.SortSize):
		return m, m.resort(SortBySize)
	case key.Matches(msg, m.keys.SortDisk):
		return m, m.resort(SortByDisk)
	case key.Matches(msg, m.keys.SortName):
		return m, m.resort(SortByName)
	case key.Matches(msg, m.keys.SortFiles):
		return m, m.resort(SortByFiles)
	case key.Matches(msg, m.keys.SortMtime):
		return m, m.resort(SortByMtime)

	case key.Matches(msg, m.keys.Kind):
		m.kindAt = (m.kindAt + 1) % len(kindSteps)
		return m, m.loadDir(m.dir.path)

	case key.Matches(msg, m.keys.Errors):
		return m, m.loadScanErrors

	case key.Matches(msg, m.keys.Filter):
		m.typing = true
	}

	return m, nil
}

func (m *Model) handleErrorsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC, key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Errors), key.Matches(msg, m.keys.Clear), key.Matches(msg, m.keys.Close):
		m.pane = paneListing
	case key.Matches(msg, m.keys.Up):
		m.errCursor = max(m.errCursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.errCursor = min(m.errCursor+1, max(len(m.scanErrors)-1, 0))
	}
	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Apply):
		m.typing = false

	case key.Matches(msg, m.keys.Clear):
		m.typing = false
		m.match = ""
		m.refilter()

	case key.Matches(msg, m.keys.DeleteChar):
		if runes := []rune(m.match); len(runes) > 0 {
			m.match = string(runes[:len(runes)-1])
			m.refilter()
		}

	case msg.Type == tea.KeyRunes:
		m.match += msg.String()
		m.refilter()
	}

	return m, nil
}

func (m *Model) resort(col SortColumn) tea.Cmd {
	m.sort = col
	return m.loadDir(m.dir.path)
}
