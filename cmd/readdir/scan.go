package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/readdir/internal/config"
	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/logger"
	"github.com/michaelscutari/readdir/internal/pathutil"
	"github.com/michaelscutari/readdir/internal/scan"
	"github.com/michaelscutari/readdir/internal/snapshot"

	_ "modernc.org/sqlite"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a directory into a snapshot database",
	Long:  `Scan a directory tree and store its entries, rollups and errors in a SQLite snapshot.`,
	RunE:  runScan,
}

var (
	scanRoot      string
	scanOut       string
	scanXdev      bool
	scanFollow    bool
	scanRetention int
	scanExclude   []string
	scanMaxErrors int
	scanProgress  time.Duration
	scanIndexMode string
	scanSQLiteTmp string
)

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanRoot, "root", "r", ".", "Root directory to scan")
	f.StringVarP(&scanOut, "out", "o", "", "Output directory for snapshots (default from config)")
	f.BoolVar(&scanXdev, "xdev", true, "Don't cross filesystem boundaries")
	f.BoolVar(&scanFollow, "follow-symlinks", false, "Descend into symlinked directories")
	f.IntVar(&scanRetention, "retention", 5, "Number of snapshots to retain (0 = unlimited)")
	f.StringSliceVarP(&scanExclude, "exclude", "e", nil, "Regex patterns to exclude (can be repeated)")
	f.IntVar(&scanMaxErrors, "max-errors", 0, "Stop after N errors (0 = unlimited)")
	f.DurationVar(&scanProgress, "progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")
	f.StringVar(&scanIndexMode, "index-mode", "memory", "Index build mode: memory|disk|skip")
	f.StringVar(&scanSQLiteTmp, "sqlite-tmp-dir", "", "Directory for SQLite temp files during index build")
}

// scanConfig overlays explicitly set flags on the loaded scan config.
func scanConfig(cmd *cobra.Command, c config.ScanConfig) config.ScanConfig {
	flags := cmd.Flags()
	if flags.Changed("out") {
		c.Out = scanOut
	}
	if flags.Changed("xdev") {
		c.Xdev = scanXdev
	}
	if flags.Changed("follow-symlinks") {
		c.FollowSymlinks = scanFollow
	}
	if flags.Changed("retention") {
		c.Retention = scanRetention
	}
	if flags.Changed("exclude") {
		c.Exclude = append(append([]string(nil), c.Exclude...), scanExclude...)
	}
	if flags.Changed("max-errors") {
		c.MaxErrors = scanMaxErrors
	}
	if flags.Changed("index-mode") {
		c.IndexMode = scanIndexMode
	}
	return c
}

func runScan(cmd *cobra.Command, args []string) error {
	sc := scanConfig(cmd, cfg.Scan)
	check := *cfg
	check.Scan = sc
	if err := check.Validate(); err != nil {
		return err
	}

	root, err := filepath.Abs(scanRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	root = pathutil.Normalize(root)

	outDir, err := filepath.Abs(sc.Out)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	opts, err := scan.FromConfig(sc)
	if err != nil {
		return err
	}

	mgr := snapshot.NewManager(outDir, sc.Retention, log)
	mgr.SetIndexMode(sc.IndexMode)
	if scanSQLiteTmp != "" {
		mgr.SetSQLiteTmpDir(scanSQLiteTmp)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	log.LogScanStart(root)
	startTime := time.Now()
	p := newProgress(startTime, isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	mgr.SetProgressFunc(p.update)
	mgr.SetStageFunc(p.setStage)
	p.start()

	dbPath, err := mgr.RunScan(ctx, root, opts)
	p.stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Scan canceled.")
			return nil
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Database: %s\n", dbPath)
	return printSummary(dbPath, root, time.Since(startTime))
}

func printSummary(dbPath, root string, elapsed time.Duration) error {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	meta, err := db.GetScanMeta(database)
	if err != nil {
		return err
	}
	log.LogScanComplete(logger.ScanSummary{
		Root:     root,
		Files:    meta.FileCount,
		Dirs:     meta.DirCount,
		Errors:   meta.ErrorCount,
		Bytes:    meta.TotalBlocks,
		Duration: elapsed,
	})

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Files: %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("  Directories: %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("  Apparent size: %s\n", humanize.IBytes(uint64(meta.TotalSize)))
	fmt.Printf("  Disk usage: %s\n", humanize.IBytes(uint64(meta.TotalBlocks)))
	if meta.ErrorCount > 0 {
		fmt.Printf("  Errors: %s (see `readdir info --errors`)\n", humanize.Comma(meta.ErrorCount))
	}
	return nil
}

// progress renders scan progress to stderr: a spinner line on a TTY,
// periodic PROGRESS lines otherwise.
type progress struct {
	startTime time.Time
	tty       bool

	files, dirs, errors, bytes atomic.Int64
	stage                      atomic.Value

	done    chan struct{}
	stopped chan struct{}
}

func newProgress(start time.Time, tty bool) *progress {
	p := &progress{startTime: start, tty: tty, done: make(chan struct{}), stopped: make(chan struct{})}
	p.stage.Store("scan")
	return p
}

func (p *progress) update(files, dirs, errors, totalBytes int64) {
	p.files.Store(files)
	p.dirs.Store(dirs)
	p.errors.Store(errors)
	p.bytes.Store(totalBytes)
}

func (p *progress) setStage(s string) {
	if s != "" {
		p.stage.Store(s)
	}
}

func (p *progress) start() {
	go func() {
		defer close(p.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		lastLine := time.Now()
		frame := 0
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				if p.tty {
					fmt.Fprintf(os.Stderr, "\r\033[K%s %s", spinnerFrames[frame%len(spinnerFrames)], p.line())
					frame++
				} else if scanProgress > 0 && time.Since(lastLine) >= scanProgress {
					fmt.Fprintf(os.Stderr, "PROGRESS %s\n", p.line())
					lastLine = time.Now()
				}
			}
		}
	}()
}

func (p *progress) stop() {
	close(p.done)
	<-p.stopped
	if p.tty {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}

func (p *progress) line() string {
	stage, _ := p.stage.Load().(string)
	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if stage != "scan" {
		return fmt.Sprintf("stage=%s elapsed=%s", stage, elapsed)
	}
	files, dirs := p.files.Load(), p.dirs.Load()
	rate := float64(0)
	if elapsed.Seconds() > 0 {
		rate = float64(files+dirs) / elapsed.Seconds()
	}
	return fmt.Sprintf("files=%s dirs=%s bytes=%s rate=%.0f/sec elapsed=%s errors=%d",
		humanize.Comma(files), humanize.Comma(dirs), humanize.IBytes(uint64(p.bytes.Load())), rate, elapsed, p.errors.Load())
}
