package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/pathutil"
)

// DisplayEntry combines entry data with rollup data for display.
type DisplayEntry struct {
	Path        string
	Name        string
	Kind        entry.Kind
	Symlink     bool
	Size        int64 // Apparent size
	Blocks      int64 // Disk usage
	ModTime     time.Time
	Depth       int
	DevID       uint64
	Inode       uint64
	TotalSize   int64 // Apparent size (rollup)
	TotalBlocks int64 // Disk usage (rollup)
	TotalFiles  int64
	TotalDirs   int64
}

// ErrNotFound is returned when a path is not a directory in the snapshot.
var ErrNotFound = errors.New("path not found in snapshot")

// ChildQuery selects the children of one directory.
type ChildQuery struct {
	Parent string
	// Sort is one of size, disk, name, files or mtime. Unknown values sort
	// by size.
	Sort string
	// Kind restricts results to one entry kind when non-nil.
	Kind  *entry.Kind
	Limit int
}

// LoadChildren loads child entries for a directory with rollup data.
// Directories carry their rollup totals; other entries count themselves.
func LoadChildren(db *sql.DB, parentPath, sortBy string, limit int) ([]DisplayEntry, error) {
	return QueryChildren(db, ChildQuery{Parent: parentPath, Sort: sortBy, Limit: limit})
}

// QueryChildren is LoadChildren with an optional kind restriction.
func QueryChildren(db *sql.DB, q ChildQuery) ([]DisplayEntry, error) {
	parentPath := pathutil.Normalize(q.Parent)

	parent, err := GetRollup(db, parentPath)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("parent %q: %w", parentPath, ErrNotFound)
	}

	orderClause := "total_size DESC"
	switch q.Sort {
	case "name":
		orderClause = "name ASC"
	case "files":
		orderClause = "total_files DESC"
	case "blocks", "disk":
		orderClause = "total_blocks DESC"
	case "mtime":
		orderClause = "mtime DESC"
	}

	where := "e.parent = ?"
	args := []any{parentPath}
	if q.Kind != nil {
		where += " AND e.kind = ?"
		args = append(args, *q.Kind)
	}
	args = append(args, q.Limit)

	query := fmt.Sprintf(`
		SELECT e.path, e.name, e.kind, e.symlink, e.size, e.blocks, e.mtime,
		       e.depth, e.dev_id, e.inode,
		       COALESCE(r.total_size, e.size) as total_size,
		       COALESCE(r.total_blocks, e.blocks) as total_blocks,
		       COALESCE(r.total_files, CASE WHEN e.kind = 0 THEN 1 ELSE 0 END) as total_files,
		       COALESCE(r.total_dirs, 0) as total_dirs
		FROM entries e
		LEFT JOIN rollups r ON r.path = e.path
		WHERE %s
		ORDER BY %s, e.name ASC
		LIMIT ?
	`, where, orderClause)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []DisplayEntry
	for rows.Next() {
		var e DisplayEntry
		var mtime int64
		if err := rows.Scan(&e.Path, &e.Name, &e.Kind, &e.Symlink, &e.Size, &e.Blocks, &mtime,
			&e.Depth, &e.DevID, &e.Inode,
			&e.TotalSize, &e.TotalBlocks, &e.TotalFiles, &e.TotalDirs); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.ModTime = time.Unix(mtime, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetRollup retrieves rollup data for a directory. It returns nil, nil when
// the path has no rollup.
func GetRollup(db *sql.DB, path string) (*entry.Rollup, error) {
	path = pathutil.Normalize(path)

	cache := getRollupCache(db)
	if cache != nil {
		if r, ok := cache.Get(path); ok {
			return &r, nil
		}
	}

	r := entry.Rollup{Path: path}
	err := db.QueryRow(`
		SELECT total_size, total_blocks, total_files, total_dirs
		FROM rollups WHERE path = ?
	`, path).Scan(&r.TotalSize, &r.TotalBlocks, &r.TotalFiles, &r.TotalDirs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rollup %q: %w", path, err)
	}

	if cache != nil {
		cache.Set(r)
	}
	return &r, nil
}

// GetScanMeta retrieves scan metadata.
func GetScanMeta(db *sql.DB) (*entry.ScanMeta, error) {
	var m entry.ScanMeta
	var startTime, endTime int64

	err := db.QueryRow(`
		SELECT scan_id, root_path, start_time, COALESCE(end_time, 0), total_size, total_blocks, file_count, dir_count, error_count
		FROM scan_meta WHERE id = 1
	`).Scan(&m.ScanID, &m.RootPath, &startTime, &endTime, &m.TotalSize, &m.TotalBlocks, &m.FileCount, &m.DirCount, &m.ErrorCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan metadata: %w", err)
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}

// LoadErrors returns up to limit sampled scan errors in arrival order.
func LoadErrors(db *sql.DB, limit int) ([]entry.ScanError, error) {
	rows, err := db.Query(`SELECT path, op, message FROM scan_errors ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var errs []entry.ScanError
	for rows.Next() {
		var e entry.ScanError
		if err := rows.Scan(&e.Path, &e.Op, &e.Message); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
