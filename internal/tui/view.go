package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"
)

const (
	shareCells = 8
	minRows    = 5
	// banner, chips, header, detail (three lines) and help
	chromeLines = 8
)

// column is one right-aligned numeric column of the listing.
type column struct {
	title string
	sort  SortColumn
	cell  func(db.DisplayEntry) string
}

var columns = []column{
	{"SIZE", SortBySize, func(e db.DisplayEntry) string { return sizeText(e.TotalSize) }},
	{"DISK", SortByDisk, func(e db.DisplayEntry) string { return sizeText(e.TotalBlocks) }},
	{"FILES", SortByFiles, func(e db.DisplayEntry) string { return countText(e.TotalFiles) }},
	{"MODIFIED", SortByMtime, func(e db.DisplayEntry) string { return e.ModTime.Format("2006-01-02") }},
}

// View implements tea.Model.
func (m *Model) View() string {
	switch {
	case m.err != nil:
		return fmt.Sprintf("error: %v\n\npress q to quit", m.err)
	case m.meta == nil:
		return "opening snapshot..."
	case m.pane == paneErrors:
		return m.errorsView()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.banner(),
		m.chips(),
		m.table(),
		m.detail(),
		styles.help.Render(m.helpLine()),
	)
}

func (m *Model) banner() string {
	title := styles.title.Render("readdir ") + elide(m.dir.path, max(m.width-8, 16))
	meta := fmt.Sprintf("scanned %s (%s) · %s files · %s dirs · %s apparent · %s on disk",
		m.meta.StartTime.Format("2006-01-02 15:04"),
		humanize.Time(m.meta.StartTime),
		countText(m.meta.FileCount),
		countText(m.meta.DirCount),
		sizeText(m.meta.TotalSize),
		sizeText(m.meta.TotalBlocks),
	)
	if m.meta.ErrorCount > 0 {
		meta += styles.warn.Render(fmt.Sprintf(" · %s errors", countText(m.meta.ErrorCount)))
	}
	return title + "\n" + styles.meta.Render(meta)
}

func (m *Model) chips() string {
	chips := []string{
		"type " + m.kindLabel(),
		"sort " + m.sort.String(),
	}
	switch {
	case m.typing:
		chips = append(chips, "match "+m.match+"_")
	case m.match != "":
		chips = append(chips, fmt.Sprintf("match %q", m.match))
	}
	out := make([]string, len(chips))
	for i, c := range chips {
		out[i] = styles.chip.Render("[" + c + "]")
	}
	line := strings.Join(out, "")
	if r := m.dir.rollup; r != nil {
		line += styles.meta.Render(fmt.Sprintf(" here: %s in %s files, %s subdirs",
			sizeText(r.TotalSize), countText(r.TotalFiles), countText(r.TotalDirs)))
	}
	return line
}

// window returns the slice of visible rows that keeps the cursor on screen.
func (m *Model) window(rows int) (int, int) {
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	return start, min(len(m.visible), start+rows)
}

func (m *Model) table() string {
	rows := max(m.height-chromeLines, minRows)
	start, end := m.window(rows)

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c.title) + 1
		for _, e := range m.visible[start:end] {
			widths[i] = max(widths[i], lipgloss.Width(c.cell(e)))
		}
	}
	fixed := shareCells + 5
	for _, w := range widths {
		fixed += w + 2
	}
	nameWidth := max(m.width-fixed, 12)

	var b strings.Builder
	cells := make([]string, 0, len(columns)+2)
	for i, c := range columns {
		title := c.title
		if c.sort == m.sort {
			title += "*"
		}
		cells = append(cells, padLeft(title, widths[i]))
	}
	name := "NAME"
	if m.sort == SortByName {
		name += "*"
	}
	cells = append(cells, padRight(name, nameWidth), "SHARE")
	b.WriteString(styles.header.Render(strings.Join(cells, "  ")))
	b.WriteString("\n")

	if len(m.visible) == 0 {
		b.WriteString(styles.other.Render(m.emptyText()))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		e := m.visible[i]
		cells = cells[:0]
		for j, c := range columns {
			cells = append(cells, padLeft(c.cell(e), widths[j]))
		}
		label := clip(nameOf(e), nameWidth)
		if i != m.cursor {
			label = kindStyle(e).Render(label)
		}
		cells = append(cells, padRight(label, nameWidth), m.share(e))
		row := strings.Join(cells, "  ")
		if i == m.cursor {
			row = styles.cursor.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	for i := max(end-start, 1); i < rows; i++ {
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m *Model) emptyText() string {
	if kindSteps[m.kindAt] != nil {
		return fmt.Sprintf("no %s entries here (t to change type)", m.kindLabel())
	}
	if m.match != "" {
		return "nothing matches the filter"
	}
	return "empty directory"
}

// detail describes the selected entry with the identity fields the listing
// has no room for.
func (m *Model) detail() string {
	sel, ok := m.selected()
	if !ok {
		return styles.detail.Render("\n")
	}
	link := "no"
	if sel.Symlink {
		link = "yes, not followed"
	}
	facts := fmt.Sprintf("%s · symlink %s · depth %d · dev %d · inode %d · modified %s",
		sel.Kind, link, sel.Depth, sel.DevID, sel.Inode, humanize.Time(sel.ModTime))
	usage := fmt.Sprintf("own size %s, %s on disk", sizeText(sel.Size), sizeText(sel.Blocks))
	if sel.Kind == entry.KindDir && !sel.Symlink {
		usage += fmt.Sprintf(" · subtree %s in %s files, %s dirs",
			sizeText(sel.TotalSize), countText(sel.TotalFiles), countText(sel.TotalDirs))
	}
	return styles.detail.Render(elide(sel.Path, max(m.width, 24)) + "\n" + facts + "\n" + usage)
}

// share renders the entry's part of the current directory for the active
// sort measure. Name and mtime sorts measure apparent size.
func (m *Model) share(e db.DisplayEntry) string {
	var part, whole int64
	if r := m.dir.rollup; r != nil {
		switch m.sort {
		case SortByDisk:
			part, whole = e.TotalBlocks, r.TotalBlocks
		case SortByFiles:
			part, whole = e.TotalFiles, r.TotalFiles
		default:
			part, whole = e.TotalSize, r.TotalSize
		}
	}
	return shareBar(part, whole)
}

func shareBar(part, whole int64) string {
	pct := 0.0
	if whole > 0 && part > 0 {
		pct = math.Min(float64(part)/float64(whole)*100, 100)
	}
	lit := int(math.Round(pct / 100 * shareCells))
	if lit == 0 && part > 0 && whole > 0 {
		lit = 1
	}
	bar := styles.shareOn.Render(strings.Repeat("▰", lit)) +
		styles.shareOff.Render(strings.Repeat("▱", shareCells-lit))
	return fmt.Sprintf("%s %3d%%", bar, int(math.Round(pct)))
}

func (m *Model) errorsView() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("scan errors"))
	b.WriteString(styles.meta.Render(fmt.Sprintf("  %d shown of %s recorded",
		len(m.scanErrors), countText(m.meta.ErrorCount))))
	b.WriteString("\n")

	if len(m.scanErrors) == 0 {
		b.WriteString(styles.other.Render("no errors were recorded during this scan"))
		b.WriteString("\n")
	}

	rows := max(m.height-3, minRows)
	start := max(m.errCursor-rows+1, 0)
	end := min(len(m.scanErrors), start+rows)
	opWidth := 4
	for _, se := range m.scanErrors[start:end] {
		opWidth = max(opWidth, len(se.Op))
	}
	pathWidth := max((m.width-opWidth-4)/2, 16)
	for i := start; i < end; i++ {
		se := m.scanErrors[i]
		row := padRight(se.Op, opWidth) + "  " + padRight(elide(se.Path, pathWidth), pathWidth) + "  " + se.Message
		if i == m.errCursor {
			row = styles.cursor.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	b.WriteString(styles.help.Render(m.helpLine()))
	return b.String()
}

func kindStyle(e db.DisplayEntry) lipgloss.Style {
	switch {
	case e.Symlink || e.Kind == entry.KindSymlink:
		return styles.link
	case e.Kind == entry.KindDir:
		return styles.dir
	case e.Kind == entry.KindFile:
		return styles.file
	}
	return styles.other
}

// nameOf suffixes directories with "/" and links with "@". A link to a
// directory is shown as a link since it cannot be opened.
func nameOf(e db.DisplayEntry) string {
	switch {
	case e.Symlink || e.Kind == entry.KindSymlink:
		return e.Name + "@"
	case e.Kind == entry.KindDir:
		return e.Name + "/"
	}
	return e.Name
}

func padLeft(s string, w int) string {
	return strings.Repeat(" ", max(w-lipgloss.Width(s), 0)) + s
}

func padRight(s string, w int) string {
	return s + strings.Repeat(" ", max(w-lipgloss.Width(s), 0))
}

// clip cuts s to n runes, marking the cut with "…".
func clip(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// elide keeps both ends of s, which suits paths.
func elide(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n < 5 {
		return clip(s, n)
	}
	head := (n - 1) / 2
	tail := n - 1 - head
	return string(r[:head]) + "…" + string(r[len(r)-tail:])
}
