// Package snapshot manages the lifecycle of snapshot databases in an
// output directory: locking, staging, atomic publish and retention.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/logger"
	"github.com/michaelscutari/readdir/internal/rollup"
	"github.com/michaelscutari/readdir/internal/scan"

	_ "modernc.org/sqlite"
)

const (
	filePrefix = "readdir-"
	fileSuffix = ".db"
	latestName = "latest.db"
	lockName   = ".readdir.lock"
)

// ErrLocked is returned when another scan holds the output directory lock.
var ErrLocked = errors.New("another scan is in progress")

// ProgressFunc is called periodically with current scan progress.
type ProgressFunc func(files, dirs, errors int64, totalBytes int64)

// StageFunc is called when scan stage changes.
type StageFunc func(stage string)

// Manager handles the scan lifecycle including locking and retention.
type Manager struct {
	outputDir    string
	retention    int
	log          logger.Logger
	progressFunc ProgressFunc
	stageFunc    StageFunc
	indexMode    string
	sqliteTmpDir string
	now          func() time.Time
}

// NewManager creates a new snapshot manager.
func NewManager(outputDir string, retention int, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Manager{
		outputDir: outputDir,
		retention: retention,
		log:       log,
		indexMode: "memory",
		now:       time.Now,
	}
}

// SetProgressFunc sets a callback for progress updates during scan.
func (m *Manager) SetProgressFunc(f ProgressFunc) {
	m.progressFunc = f
}

// SetStageFunc sets a callback for scan stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetIndexMode sets the index build mode: memory|disk|skip.
func (m *Manager) SetIndexMode(mode string) {
	if mode != "" {
		m.indexMode = mode
	}
}

// SetSQLiteTmpDir sets the temp directory for SQLite during index build.
func (m *Manager) SetSQLiteTmpDir(dir string) {
	m.sqliteTmpDir = dir
}

func (m *Manager) stage(name string) {
	m.log.LogDebug("stage: " + name)
	if m.stageFunc != nil {
		m.stageFunc(name)
	}
}

// RunScan scans root into a new snapshot and returns its path. The snapshot
// is built under a temporary name and only renamed into place once rollups,
// indexes and finalization have succeeded.
func (m *Manager) RunScan(ctx context.Context, root string, opts *scan.ScanOptions) (string, error) {
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(m.outputDir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return "", ErrLocked
	}
	defer lock.Unlock()

	if opts == nil {
		opts = scan.DefaultOptions()
	}
	if opts.ScanID == "" {
		opts.WithScanID(uuid.New().String())
	}

	started := m.now()
	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".readdir-temp-%d.db", started.UnixNano()))
	if err := m.build(ctx, tempPath, root, opts); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	finalName := fmt.Sprintf("%s%s-%s%s", filePrefix, started.Format("20060102-150405.000"), opts.ScanID[:min(8, len(opts.ScanID))], fileSuffix)
	finalPath := filepath.Join(m.outputDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	if err := m.linkLatest(finalName); err != nil {
		m.log.LogWarn(fmt.Sprintf("failed to update %s: %v", latestName, err))
	}
	if err := m.prune(); err != nil {
		m.log.LogWarn(fmt.Sprintf("failed to prune old snapshots: %v", err))
	}

	return finalPath, nil
}

func (m *Manager) build(ctx context.Context, path, root string, opts *scan.ScanOptions) error {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer database.Close()
	defer db.ForgetCache(database)

	if err := db.InitSchema(database); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	m.stage("scan")
	scanner := scan.NewScanner(opts, m.log)
	stopProgress := m.reportProgress(scanner)
	scanErr := scanner.Run(ctx, root, database)
	stopProgress()
	if scanErr != nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	m.stage("rollups")
	builder := rollup.NewBuilder(database)
	builder.SetBatchSize(opts.BatchSize)
	if err := builder.Build(ctx); err != nil {
		return fmt.Errorf("failed to build rollups: %w", err)
	}

	if m.indexMode != "skip" {
		m.stage("indexes")
		if err := db.ApplyIndexPragmas(database, m.indexMode == "disk", m.sqliteTmpDir); err != nil {
			return fmt.Errorf("failed to apply index pragmas: %w", err)
		}
		if err := db.BuildIndexes(database); err != nil {
			return fmt.Errorf("failed to build indexes: %w", err)
		}
	}

	m.stage("finalize")
	if err := db.Finalize(database); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	return nil
}

// reportProgress polls the scanner until the returned stop func is called.
func (m *Manager) reportProgress(scanner *scan.Scanner) func() {
	if m.progressFunc == nil {
		return func() {}
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := scanner.Progress(); p != nil {
					m.progressFunc(p.Files, p.Dirs, p.Errors, p.TotalBytes)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// linkLatest swaps latest.db via temp symlink + rename.
func (m *Manager) linkLatest(target string) error {
	latestPath := filepath.Join(m.outputDir, latestName)
	tempLink := filepath.Join(m.outputDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(target, tempLink); err != nil {
		return err
	}
	if err := os.Rename(tempLink, latestPath); err != nil {
		os.Remove(tempLink)
		return err
	}
	return nil
}

func (m *Manager) prune() error {
	if m.retention <= 0 {
		return nil
	}
	snapshots, err := m.ListSnapshots()
	if err != nil {
		return err
	}
	for len(snapshots) > m.retention {
		if err := os.Remove(snapshots[0]); err != nil {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(snapshots[0]), err)
		}
		m.log.LogDebug("pruned " + filepath.Base(snapshots[0]))
		snapshots = snapshots[1:]
	}
	return nil
}

// GetLatest returns the path to the latest snapshot.
func (m *Manager) GetLatest() (string, error) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(m.outputDir, latestName))
	if err != nil {
		return "", fmt.Errorf("no latest snapshot found: %w", err)
	}
	return resolved, nil
}

// ListSnapshots returns all available snapshots, oldest first. Names embed
// the start time, so lexical order is chronological.
func (m *Manager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			snapshots = append(snapshots, filepath.Join(m.outputDir, e.Name()))
		}
	}

	sort.Strings(snapshots)
	return snapshots, nil
}
