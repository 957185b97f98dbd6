package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/michaelscutari/readdir/internal/entry"
)

const insertRollupSQL = `INSERT OR REPLACE INTO rollups (path, total_size, total_blocks, total_files, total_dirs) VALUES (?, ?, ?, ?, ?)`

// InitScanMeta records the start of a scan.
func InitScanMeta(db *sql.DB, scanID, root string, start time.Time) error {
	_, err := db.Exec(
		`INSERT INTO scan_meta (id, scan_id, root_path, start_time) VALUES (1, ?, ?, ?)`,
		scanID, root, start.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record scan start: %w", err)
	}
	return nil
}

// FinalizeScanMeta stores end time and totals computed from the entries table.
func FinalizeScanMeta(db *sql.DB, end time.Time, errorCount int64) error {
	var fileCount, dirCount, totalSize, totalBlocks int64
	err := db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN kind = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 0 THEN size ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 0 THEN blocks ELSE 0 END), 0)
		FROM entries
	`).Scan(&fileCount, &dirCount, &totalSize, &totalBlocks)
	if err != nil {
		return fmt.Errorf("failed to total entries: %w", err)
	}

	_, err = db.Exec(
		`UPDATE scan_meta SET end_time = ?, total_size = ?, total_blocks = ?, file_count = ?, dir_count = ?, error_count = ? WHERE id = 1`,
		end.Unix(), totalSize, totalBlocks, fileCount, dirCount, errorCount,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize scan metadata: %w", err)
	}
	return nil
}

// WriteRollups stores rollups in batches of batchSize per transaction.
func WriteRollups(db *sql.DB, rollups []entry.Rollup, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(rollups)
	}
	for start := 0; start < len(rollups); start += batchSize {
		end := min(start+batchSize, len(rollups))
		if err := writeRollupBatch(db, rollups[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func writeRollupBatch(db *sql.DB, batch []entry.Rollup) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rollup transaction: %w", err)
	}

	stmt, err := tx.Prepare(insertRollupSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare rollup statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(r.Path, r.TotalSize, r.TotalBlocks, r.TotalFiles, r.TotalDirs); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert rollup %q: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollup transaction: %w", err)
	}
	return nil
}
