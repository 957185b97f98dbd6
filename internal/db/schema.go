package db

import (
	"database/sql"
	"fmt"
	"os"
)

const entriesTableDDL = `
CREATE TABLE IF NOT EXISTS entries (
    path TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    parent TEXT NOT NULL,
    kind INTEGER NOT NULL,
    symlink INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL,
    blocks INTEGER NOT NULL,
    mtime INTEGER NOT NULL,
    depth INTEGER NOT NULL,
    dev_id INTEGER NOT NULL,
    inode INTEGER NOT NULL
);
`

const rollupsTableDDL = `
CREATE TABLE IF NOT EXISTS rollups (
    path TEXT PRIMARY KEY,
    total_size INTEGER NOT NULL,
    total_blocks INTEGER NOT NULL,
    total_files INTEGER NOT NULL,
    total_dirs INTEGER NOT NULL
);
`

const scanMetaTableDDL = `
CREATE TABLE IF NOT EXISTS scan_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    scan_id TEXT NOT NULL,
    root_path TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER,
    total_size INTEGER DEFAULT 0,
    total_blocks INTEGER DEFAULT 0,
    file_count INTEGER DEFAULT 0,
    dir_count INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0
);
`

const scanErrorsTableDDL = `
CREATE TABLE IF NOT EXISTS scan_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    op TEXT NOT NULL,
    message TEXT NOT NULL
);
`

const entriesParentIndexDDL = `CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent);`
const entriesParentSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_entries_parent_size ON entries(parent, size DESC);`
const entriesParentBlocksIndexDDL = `CREATE INDEX IF NOT EXISTS idx_entries_parent_blocks ON entries(parent, blocks DESC);`
const entriesDepthIndexDDL = `CREATE INDEX IF NOT EXISTS idx_entries_depth ON entries(depth);`
const rollupsSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_rollups_size ON rollups(total_size DESC);`
const rollupsBlocksIndexDDL = `CREATE INDEX IF NOT EXISTS idx_rollups_blocks ON rollups(total_blocks DESC);`

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	ddls := []string{
		entriesTableDDL,
		rollupsTableDDL,
		scanMetaTableDDL,
		scanErrorsTableDDL,
	}

	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}

// ApplyWritePragmas configures SQLite for optimal write performance during ingestion.
func ApplyWritePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456", // 256MB mmap
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyReadPragmas configures SQLite for read-only browsing.
func ApplyReadPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA query_only = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyIndexPragmas configures SQLite for index builds.
// When diskTemp is true, temp files are stored on disk to reduce RAM usage.
func ApplyIndexPragmas(db *sql.DB, diskTemp bool, tmpDir string) error {
	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return fmt.Errorf("failed to create sqlite temp dir: %w", err)
		}
		if err := os.Setenv("SQLITE_TMPDIR", tmpDir); err != nil {
			return fmt.Errorf("failed to set SQLITE_TMPDIR: %w", err)
		}
	}

	pragma := "PRAGMA temp_store = MEMORY"
	if diskTemp {
		pragma = "PRAGMA temp_store = FILE"
	}
	if _, err := db.Exec(pragma); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	return nil
}

// BuildIndexes creates secondary indexes once the entries are loaded.
func BuildIndexes(db *sql.DB) error {
	indexes := []string{
		entriesParentIndexDDL,
		entriesParentSizeIndexDDL,
		entriesParentBlocksIndexDDL,
		entriesDepthIndexDDL,
		rollupsSizeIndexDDL,
		rollupsBlocksIndexDDL,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Finalize prepares the database for read-only access.
func Finalize(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}

	// WAL files do not travel with a renamed snapshot.
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	return nil
}
