// Package scan records a traversal into a snapshot database.
package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/michaelscutari/readdir"
	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
	"github.com/michaelscutari/readdir/internal/logger"
)

// ErrTooManyErrors is returned when a scan stops after MaxErrors errors.
var ErrTooManyErrors = errors.New("too many scan errors")

// Scanner coordinates the filesystem scan.
type Scanner struct {
	opts    *ScanOptions
	log     logger.Logger
	rootDev uint64

	ingester atomic.Pointer[db.Ingester]
	dropped  atomic.Int64
}

// NewScanner creates a new scanner.
func NewScanner(opts *ScanOptions, log logger.Logger) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Scanner{opts: opts, log: log}
}

// Run scans root and writes entries, errors and scan metadata to database.
// Rollups are not computed here.
func (s *Scanner) Run(ctx context.Context, root string, database *sql.DB) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootStats, err := fsys.OS{}.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	if !rootStats.IsDir() {
		return fmt.Errorf("scan root %s is not a directory", root)
	}
	s.rootDev = rootStats.Dev

	scanID := s.opts.ScanID
	if scanID == "" {
		scanID = uuid.New().String()
	}
	if err := db.InitScanMeta(database, scanID, root, time.Now()); err != nil {
		return err
	}

	// Sized at 10x batch size to absorb bursts while a batch commits.
	entryCh := make(chan entry.Record, max(s.opts.BatchSize*10, 1000))
	errs := newErrorSink(1000, &s.dropped)

	ing := db.NewIngester(database, entryCh, errs.ch, s.opts.BatchSize, s.opts.FlushIntervalMs, s.opts.MaxErrors, s.log, cancel)
	s.ingester.Store(ing)
	ingesterDone := make(chan error, 1)
	go func() {
		ingesterDone <- ing.Run(ctx)
	}()

	entryCh <- rootRecord(root, rootStats)

	traverseErr := s.traverse(ctx, root, entryCh, errs)

	close(entryCh)
	errs.close()

	if err := <-ingesterDone; err != nil {
		return fmt.Errorf("ingester error: %w", err)
	}
	if traverseErr != nil {
		return traverseErr
	}
	if err := parent.Err(); err != nil {
		return err
	}

	errorCount := ing.ErrorCount() + s.dropped.Load()
	if s.opts.MaxErrors > 0 && errorCount >= int64(s.opts.MaxErrors) {
		return fmt.Errorf("%w: %d", ErrTooManyErrors, errorCount)
	}
	return db.FinalizeScanMeta(database, time.Now(), errorCount)
}

func (s *Scanner) traverse(ctx context.Context, root string, entryCh chan<- entry.Record, errs *errorSink) error {
	stream, err := readdir.NewStreamStats(ctx, root, &readdir.Options{
		Deep:     s.recurse,
		Filter:   s.include,
		BasePath: root,
		Sep:      string(filepath.Separator),
	})
	if err != nil {
		return fmt.Errorf("failed to configure traversal: %w", err)
	}

	var rootErr atomic.Pointer[error]
	stream.OnError(func(err error) {
		if readdir.IsFatal(err) {
			rootErr.CompareAndSwap(nil, &err)
		}
		s.log.LogDebug(err.Error())
		errs.send(toScanError(err))
	})
	stream.OnDirectory(func(e readdir.Entry) {
		s.log.LogTrace("directory " + e.Path)
	})

	for e := range stream.Start() {
		select {
		case entryCh <- recordOf(e.Stats):
		case <-ctx.Done():
		}
	}
	<-stream.Done()

	if p := rootErr.Load(); p != nil {
		return fmt.Errorf("failed to read root: %w", *p)
	}
	return nil
}

// recurse refuses symlinked directories unless following is enabled.
func (s *Scanner) recurse(st *entry.Stats) bool {
	if st.IsSymlink() && !s.opts.FollowSymlinks {
		return false
	}
	return s.include(st)
}

func (s *Scanner) include(st *entry.Stats) bool {
	if s.opts.ShouldExclude(st.Path) {
		return false
	}
	if s.opts.Xdev && st.Dev != 0 && s.rootDev != 0 && st.Dev != s.rootDev {
		return false
	}
	return true
}

// Progress returns current scan progress (safe for concurrent access).
// Returns nil if scan hasn't started.
func (s *Scanner) Progress() *db.Progress {
	ing := s.ingester.Load()
	if ing == nil {
		return nil
	}
	p := ing.Progress()
	p.Errors += s.dropped.Load()
	return &p
}

func rootRecord(root string, st *entry.Stats) entry.Record {
	return entry.Record{
		Path:    root,
		Name:    filepath.Base(root),
		Kind:    entry.KindDir,
		Size:    st.Size,
		Blocks:  st.DiskUsage(),
		ModTime: st.ModTime,
		DevID:   st.Dev,
		Inode:   st.Ino,
	}
}

func recordOf(st *entry.Stats) entry.Record {
	return entry.Record{
		Path:    st.Path,
		Name:    st.Name,
		Parent:  filepath.Dir(st.Path),
		Kind:    entry.KindOf(st),
		Symlink: st.IsSymlink(),
		Size:    st.Size,
		Blocks:  st.DiskUsage(),
		ModTime: st.ModTime,
		Depth:   st.Depth + 1,
		DevID:   st.Dev,
		Inode:   st.Ino,
	}
}

func toScanError(err error) entry.ScanError {
	var rerr *readdir.Error
	if errors.As(err, &rerr) {
		return entry.ScanError{Path: rerr.Path, Op: rerr.Op, Message: rerr.Err.Error()}
	}
	return entry.ScanError{Op: "scan", Message: err.Error()}
}

// errorSink forwards errors to the ingester without blocking the traversal.
// Errors arriving while the channel is full are counted and dropped; errors
// arriving after close are ignored.
type errorSink struct {
	mu      sync.Mutex
	ch      chan entry.ScanError
	closed  bool
	dropped *atomic.Int64
}

func newErrorSink(size int, dropped *atomic.Int64) *errorSink {
	return &errorSink{ch: make(chan entry.ScanError, size), dropped: dropped}
}

func (e *errorSink) send(se entry.ScanError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- se:
	default:
		e.dropped.Add(1)
	}
}

func (e *errorSink) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
