// Package rollup aggregates directory totals from a snapshot's entries.
package rollup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"
)

// Builder computes directory rollups bottom-up, one depth level at a time.
// Symlinks are listed in a snapshot but never counted in a rollup.
type Builder struct {
	db        *sql.DB
	batchSize int
	progress  ProgressFunc
}

// ProgressFunc reports rollup progress.
type ProgressFunc func(done, total int64, depth, maxDepth int)

type node struct {
	rollup entry.Rollup
	parent string
}

// NewBuilder creates a new rollup builder.
func NewBuilder(db *sql.DB) *Builder {
	return &Builder{db: db, batchSize: 10000}
}

// SetProgressFunc sets a callback for rollup progress updates.
func (b *Builder) SetProgressFunc(f ProgressFunc) {
	b.progress = f
}

// SetBatchSize sets the number of rollups written per transaction.
func (b *Builder) SetBatchSize(n int) {
	if n > 0 {
		b.batchSize = n
	}
}

// Build computes rollups for all directories, deepest level first. Each
// level only needs the finished rollups of the level below it.
func (b *Builder) Build(ctx context.Context) error {
	var maxDepth int
	var totalDirs int64
	err := b.db.QueryRow(`
		SELECT COALESCE(MAX(depth), -1), COUNT(*)
		FROM entries WHERE kind = ? AND symlink = 0
	`, entry.KindDir).Scan(&maxDepth, &totalDirs)
	if err != nil {
		return fmt.Errorf("failed to size directory levels: %w", err)
	}

	var below map[string]*node
	var processed int64
	lastUpdate := time.Now()

	for depth := maxDepth; depth >= 0; depth-- {
		if err := ctx.Err(); err != nil {
			return err
		}

		level, err := b.loadLevel(depth)
		if err != nil {
			return err
		}
		if err := b.addFiles(level, depth+1); err != nil {
			return err
		}
		for _, child := range below {
			if parent, ok := level[child.parent]; ok {
				parent.rollup.TotalSize += child.rollup.TotalSize
				parent.rollup.TotalBlocks += child.rollup.TotalBlocks
				parent.rollup.TotalFiles += child.rollup.TotalFiles
				parent.rollup.TotalDirs += child.rollup.TotalDirs + 1
			}
		}

		rollups := make([]entry.Rollup, 0, len(level))
		for _, n := range level {
			rollups = append(rollups, n.rollup)
		}
		if err := db.WriteRollups(b.db, rollups, b.batchSize); err != nil {
			return fmt.Errorf("failed to write rollups at depth %d: %w", depth, err)
		}

		below = level
		processed += int64(len(level))
		if b.progress != nil && (depth == 0 || time.Since(lastUpdate) > 200*time.Millisecond) {
			b.progress(processed, totalDirs, depth, maxDepth)
			lastUpdate = time.Now()
		}
	}

	return nil
}

func (b *Builder) loadLevel(depth int) (map[string]*node, error) {
	rows, err := b.db.Query(`
		SELECT path, parent FROM entries
		WHERE kind = ? AND symlink = 0 AND depth = ?
	`, entry.KindDir, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to query directories at depth %d: %w", depth, err)
	}
	defer rows.Close()

	level := make(map[string]*node)
	for rows.Next() {
		n := &node{}
		if err := rows.Scan(&n.rollup.Path, &n.parent); err != nil {
			return nil, fmt.Errorf("failed to scan directory path: %w", err)
		}
		level[n.rollup.Path] = n
	}
	return level, rows.Err()
}

// addFiles adds the regular files found at depth to their parents in level.
func (b *Builder) addFiles(level map[string]*node, depth int) error {
	rows, err := b.db.Query(`
		SELECT parent, COALESCE(SUM(size), 0), COALESCE(SUM(blocks), 0), COUNT(*)
		FROM entries
		WHERE kind = ? AND symlink = 0 AND depth = ?
		GROUP BY parent
	`, entry.KindFile, depth)
	if err != nil {
		return fmt.Errorf("failed to total files at depth %d: %w", depth, err)
	}
	defer rows.Close()

	for rows.Next() {
		var parent string
		var size, blocks, count int64
		if err := rows.Scan(&parent, &size, &blocks, &count); err != nil {
			return fmt.Errorf("failed to scan file totals: %w", err)
		}
		if n, ok := level[parent]; ok {
			n.rollup.TotalSize += size
			n.rollup.TotalBlocks += blocks
			n.rollup.TotalFiles += count
		}
	}
	return rows.Err()
}
