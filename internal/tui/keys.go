package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the snapshot browser.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Open       key.Binding
	Close      key.Binding
	Top        key.Binding
	Bottom     key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	SortSize   key.Binding
	SortDisk   key.Binding
	SortName   key.Binding
	SortFiles  key.Binding
	SortMtime  key.Binding
	Kind       key.Binding
	Errors     key.Binding
	Filter     key.Binding
	Apply      key.Binding
	Clear      key.Binding
	DeleteChar key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:       key.NewBinding(key.WithKeys("enter", "l", "right"), key.WithHelp("enter", "open")),
		Close:      key.NewBinding(key.WithKeys("backspace", "h", "left"), key.WithHelp("bksp", "up a level")),
		Top:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		PageUp:     key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdown", "page down")),
		SortSize:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "size")),
		SortDisk:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disk")),
		SortName:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "name")),
		SortFiles:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "files")),
		SortMtime:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mtime")),
		Kind:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "type")),
		Errors:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "scan errors")),
		Filter:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Apply:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Clear:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		DeleteChar: key.NewBinding(key.WithKeys("backspace")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func helpFor(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// HelpText returns the listing help line.
func (k KeyMap) HelpText() string {
	return helpFor(k.Open, k.Close, k.Kind, k.Filter, k.Errors, k.Quit) + " · sort s/d/n/f/m"
}

// FilterHelpText returns the help line while typing a name filter.
func (k KeyMap) FilterHelpText() string {
	return "type to filter · " + helpFor(k.Apply, k.Clear)
}

// ErrorsHelpText returns the help line of the scan error pane.
func (k KeyMap) ErrorsHelpText() string {
	return helpFor(k.Up, k.Down, k.Errors, k.Quit)
}
