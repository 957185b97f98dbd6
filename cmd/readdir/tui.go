package main

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/snapshot"
	"github.com/michaelscutari/readdir/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse a snapshot interactively",
	Long:  `Open an interactive TUI to browse the snapshot tree and view disk usage.`,
	RunE:  runTUI,
}

var tuiDB string

func init() {
	tuiCmd.Flags().StringVarP(&tuiDB, "db", "d", "", "Path to database file (default <scan.out>/latest.db)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	database, err := openSnapshot(tuiDB)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.ApplyReadPragmas(database); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	p := tea.NewProgram(tui.NewModel(database), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// latestSnapshot resolves latest.db in the configured output directory,
// falling back to the unresolved link path so errors name it.
func latestSnapshot() string {
	mgr := snapshot.NewManager(cfg.Scan.Out, 0, log)
	if path, err := mgr.GetLatest(); err == nil {
		return path
	}
	return filepath.Join(cfg.Scan.Out, "latest.db")
}
