package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/logger"
)

const insertEntrySQL = `INSERT OR REPLACE INTO entries (path, name, parent, kind, symlink, size, blocks, mtime, depth, dev_id, inode) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
const insertErrorSQL = `INSERT INTO scan_errors (path, op, message) VALUES (?, ?, ?)`

const maxErrorsSampled = 1000

// Ingester batches traversal records and errors into the database.
type Ingester struct {
	db              *sql.DB
	entryCh         <-chan entry.Record
	errorCh         <-chan entry.ScanError
	batchSize       int
	flushIntervalMs int
	maxErrors       int
	cancelFunc      context.CancelFunc
	log             logger.Logger

	entryBatch  []entry.Record
	errorBatch  []entry.ScanError
	errorCapped bool

	// Progress tracking (atomic)
	fileCount  int64
	dirCount   int64
	errorCount int64
	totalBytes int64

	entryStmt *sql.Stmt
	errorStmt *sql.Stmt
}

// Progress holds current scan progress.
type Progress struct {
	Files      int64
	Dirs       int64
	Errors     int64
	TotalBytes int64
}

// NewIngester creates an ingester. cancelFunc is called once maxErrors
// errors have been received; zero means unlimited.
func NewIngester(db *sql.DB, entryCh <-chan entry.Record, errorCh <-chan entry.ScanError, batchSize, flushIntervalMs, maxErrors int, log logger.Logger, cancelFunc context.CancelFunc) *Ingester {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 1000
	}
	return &Ingester{
		db:              db,
		entryCh:         entryCh,
		errorCh:         errorCh,
		batchSize:       batchSize,
		flushIntervalMs: flushIntervalMs,
		maxErrors:       maxErrors,
		cancelFunc:      cancelFunc,
		log:             log,
		entryBatch:      make([]entry.Record, 0, batchSize),
		errorBatch:      make([]entry.ScanError, 0, 100),
	}
}

// Run consumes both channels until they are closed or ctx is done, then
// flushes what is left.
func (ing *Ingester) Run(ctx context.Context) error {
	var err error
	ing.entryStmt, err = ing.db.Prepare(insertEntrySQL)
	if err != nil {
		return fmt.Errorf("failed to prepare entry statement: %w", err)
	}
	defer ing.entryStmt.Close()

	ing.errorStmt, err = ing.db.Prepare(insertErrorSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare error statement: %w", err)
	}
	defer ing.errorStmt.Close()

	ticker := time.NewTicker(time.Duration(ing.flushIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	ing.log.LogDebug(fmt.Sprintf("ingester started batchSize=%d flushInterval=%dms", ing.batchSize, ing.flushIntervalMs))

	entryCh := ing.entryCh
	errorCh := ing.errorCh

	for entryCh != nil || errorCh != nil {
		select {
		case <-ctx.Done():
			ing.log.LogDebug(fmt.Sprintf("ingester cancelled with %d entries pending", len(ing.entryBatch)))
			return ing.flush()

		case e, ok := <-entryCh:
			if !ok {
				entryCh = nil
				continue
			}
			ing.track(e)
			ing.entryBatch = append(ing.entryBatch, e)
			if len(ing.entryBatch) >= ing.batchSize {
				if err := ing.flushEntries(); err != nil {
					return err
				}
			}

		case e, ok := <-errorCh:
			if !ok {
				errorCh = nil
				continue
			}
			n := atomic.AddInt64(&ing.errorCount, 1)
			if ing.maxErrors > 0 && n >= int64(ing.maxErrors) && ing.cancelFunc != nil {
				ing.cancelFunc()
			}
			// Only sample the first errors to bound memory.
			if !ing.errorCapped {
				ing.errorBatch = append(ing.errorBatch, e)
				if len(ing.errorBatch) >= maxErrorsSampled {
					ing.errorCapped = true
					if err := ing.flushErrors(); err != nil {
						return err
					}
				}
			}

		case <-ticker.C:
			if err := ing.flush(); err != nil {
				return err
			}
		}
	}

	return ing.flush()
}

func (ing *Ingester) track(e entry.Record) {
	switch e.Kind {
	case entry.KindFile:
		atomic.AddInt64(&ing.fileCount, 1)
		atomic.AddInt64(&ing.totalBytes, e.Blocks)
	case entry.KindDir:
		atomic.AddInt64(&ing.dirCount, 1)
	}
}

func (ing *Ingester) flush() error {
	if err := ing.flushEntries(); err != nil {
		return err
	}
	return ing.flushErrors()
}

func (ing *Ingester) flushEntries() error {
	if len(ing.entryBatch) == 0 {
		return nil
	}

	batchLen := len(ing.entryBatch)
	flushStart := time.Now()

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(ing.entryStmt)
	for _, e := range ing.entryBatch {
		_, err := stmt.Exec(e.Path, e.Name, e.Parent, e.Kind, e.Symlink, e.Size, e.Blocks, e.ModTime.Unix(), e.Depth, e.DevID, e.Inode)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert entry %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	ing.log.LogDebug(fmt.Sprintf("flushed %d entries in %v", batchLen, time.Since(flushStart)))
	ing.entryBatch = ing.entryBatch[:0]
	return nil
}

func (ing *Ingester) flushErrors() error {
	if len(ing.errorBatch) == 0 {
		return nil
	}

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error transaction: %w", err)
	}

	stmt := tx.Stmt(ing.errorStmt)
	for _, e := range ing.errorBatch {
		_, err := stmt.Exec(e.Path, e.Op, e.Message)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert error for %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transaction: %w", err)
	}

	ing.errorBatch = ing.errorBatch[:0]
	return nil
}

// ErrorCount returns the total number of errors received.
func (ing *Ingester) ErrorCount() int64 {
	return atomic.LoadInt64(&ing.errorCount)
}

// Progress returns current scan progress (safe for concurrent access).
func (ing *Ingester) Progress() Progress {
	return Progress{
		Files:      atomic.LoadInt64(&ing.fileCount),
		Dirs:       atomic.LoadInt64(&ing.dirCount),
		Errors:     atomic.LoadInt64(&ing.errorCount),
		TotalBytes: atomic.LoadInt64(&ing.totalBytes),
	}
}
