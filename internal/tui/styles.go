package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// theme groups the styles of the browser so a view only reaches for roles,
// never raw colors.
type theme struct {
	title    lipgloss.Style
	meta     lipgloss.Style
	chip     lipgloss.Style
	header   lipgloss.Style
	cursor   lipgloss.Style
	dir      lipgloss.Style
	file     lipgloss.Style
	link     lipgloss.Style
	other    lipgloss.Style
	detail   lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	shareOn  lipgloss.Style
	shareOff lipgloss.Style
}

func newTheme() theme {
	var (
		accent = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
		dim    = lipgloss.AdaptiveColor{Light: "244", Dark: "242"}
		soft   = lipgloss.AdaptiveColor{Light: "240", Dark: "249"}
		alert  = lipgloss.Color("208")
	)
	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		meta:     lipgloss.NewStyle().Foreground(soft),
		chip:     lipgloss.NewStyle().Foreground(alert).Padding(0, 1),
		header:   lipgloss.NewStyle().Bold(true).Foreground(dim).Underline(true),
		cursor:   lipgloss.NewStyle().Reverse(true),
		dir:      lipgloss.NewStyle().Bold(true).Foreground(accent),
		file:     lipgloss.NewStyle(),
		link:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("176")),
		other:    lipgloss.NewStyle().Foreground(dim),
		detail:   lipgloss.NewStyle().Foreground(soft).BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(dim),
		warn:     lipgloss.NewStyle().Foreground(alert),
		help:     lipgloss.NewStyle().Foreground(dim),
		shareOn:  lipgloss.NewStyle().Foreground(lipgloss.Color("72")),
		shareOff: lipgloss.NewStyle().Foreground(dim),
	}
}

var styles = newTheme()

func sizeText(bytes int64) string {
	return humanize.Bytes(uint64(max(bytes, 0)))
}

func countText(n int64) string {
	return humanize.Comma(n)
}
