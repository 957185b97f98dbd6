package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/readdir/internal/db"

	_ "modernc.org/sqlite"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display scan metadata",
	Long:  `Print metadata about a snapshot including timestamps, statistics and sampled errors.`,
	RunE:  runInfo,
}

var (
	infoDB     string
	infoErrors int
)

func init() {
	infoCmd.Flags().StringVarP(&infoDB, "db", "d", "", "Path to database file (default <scan.out>/latest.db)")
	infoCmd.Flags().IntVar(&infoErrors, "errors", 0, "Also list up to N sampled scan errors")
	infoCmd.Flags().Lookup("errors").NoOptDefVal = "20"
}

func runInfo(cmd *cobra.Command, args []string) error {
	database, err := openSnapshot(infoDB)
	if err != nil {
		return err
	}
	defer database.Close()

	meta, err := db.GetScanMeta(database)
	if err != nil {
		return err
	}

	fmt.Printf("Scan Information\n")
	fmt.Printf("================\n\n")
	fmt.Printf("Scan ID:      %s\n", meta.ScanID)
	fmt.Printf("Root Path:    %s\n", meta.RootPath)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if !meta.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", meta.EndTime.Sub(meta.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Files:         %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("Directories:   %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("Apparent Size: %s\n", humanize.Bytes(uint64(meta.TotalSize)))
	fmt.Printf("Disk Usage:    %s\n", humanize.Bytes(uint64(meta.TotalBlocks)))
	if meta.ErrorCount > 0 {
		fmt.Printf("Errors:        %s\n", humanize.Comma(meta.ErrorCount))
	}

	if infoErrors > 0 {
		errs, err := db.LoadErrors(database, infoErrors)
		if err != nil {
			return err
		}
		fmt.Printf("\nSampled Errors\n")
		fmt.Printf("--------------\n")
		for _, e := range errs {
			fmt.Printf("%-8s %s: %s\n", e.Op, e.Path, e.Message)
		}
	}

	return nil
}

// openSnapshot opens path, or the latest snapshot in the configured output
// directory when path is empty.
func openSnapshot(path string) (*sql.DB, error) {
	if path == "" {
		path = latestSnapshot()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no snapshot at %s: %w", path, err)
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}
