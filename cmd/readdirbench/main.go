package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelscutari/readdir"
	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/scan"

	_ "modernc.org/sqlite"
)

type result struct {
	name    string
	entries int
	errors  int
	dur     time.Duration
}

func main() {
	dir := flag.String("dir", ".", "Directory to enumerate")
	rounds := flag.Int("rounds", 3, "Rounds per method (best is reported)")
	stats := flag.Bool("stats", false, "Request stats payloads")
	ingest := flag.String("ingest", "", "Also time a full scan into a temp snapshot under this directory")
	batch := flag.Int("batch", 10000, "Ingest batch size per transaction")
	flag.Parse()

	if *rounds < 1 {
		*rounds = 1
	}
	ctx := context.Background()
	opts := &readdir.Options{Deep: true, Stats: *stats}

	methods := []struct {
		name string
		run  func() (int, int, error)
	}{
		{"ReadSync", func() (int, int, error) {
			if *stats {
				out, err := readdir.ReadSyncStats(*dir, opts)
				return len(out), 0, err
			}
			out, err := readdir.ReadSync(*dir, opts)
			return len(out), 0, err
		}},
		{"Read", func() (int, int, error) {
			out, err := readdir.Read(ctx, *dir, opts)
			return len(out), 0, err
		}},
		{"Iter", func() (int, int, error) {
			n := 0
			for _, err := range readdir.Iter(ctx, *dir, opts) {
				if err != nil {
					return n, 1, err
				}
				n++
			}
			return n, 0, nil
		}},
		{"WalkDir", func() (int, int, error) {
			n, errs := 0, 0
			err := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					errs++
					return nil
				}
				if path == *dir {
					return nil
				}
				if *stats {
					if _, err := d.Info(); err != nil {
						errs++
						return nil
					}
				}
				n++
				return nil
			})
			return n, errs, err
		}},
	}

	fmt.Printf("dir=%s rounds=%d stats=%v\n", *dir, *rounds, *stats)
	for _, m := range methods {
		best := result{name: m.name}
		for i := range *rounds {
			start := time.Now()
			n, errs, err := m.run()
			dur := time.Since(start)
			if err != nil && readdir.IsFatal(err) {
				fmt.Fprintf(os.Stderr, "%s error: %v\n", m.name, err)
				os.Exit(1)
			}
			if err != nil && errs == 0 {
				errs = 1
			}
			if i == 0 || dur < best.dur {
				best = result{name: m.name, entries: n, errors: errs, dur: dur}
			}
		}
		report(best)
	}

	if *ingest != "" {
		r, err := timeIngest(ctx, *dir, *ingest, *batch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest error: %v\n", err)
			os.Exit(1)
		}
		report(r)
	}
}

func report(r result) {
	rate := float64(0)
	if r.dur > 0 {
		rate = float64(r.entries) / r.dur.Seconds()
	}
	fmt.Printf("%-8s entries=%d errors=%d time=%s rate=%.0f/sec\n", r.name, r.entries, r.errors, r.dur.Round(time.Microsecond), rate)
}

// timeIngest scans dir into a throwaway snapshot database.
func timeIngest(ctx context.Context, dir, outDir string, batch int) (result, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return result{}, err
	}
	dbPath := filepath.Join(outDir, fmt.Sprintf(".readdirbench-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return result{}, err
	}
	defer func() {
		database.Close()
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	}()

	if err := db.InitSchema(database); err != nil {
		return result{}, err
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return result{}, err
	}

	opts := scan.DefaultOptions()
	opts.BatchSize = batch
	s := scan.NewScanner(opts, nil)

	start := time.Now()
	if err := s.Run(ctx, dir, database); err != nil {
		return result{}, err
	}
	dur := time.Since(start)

	p := s.Progress()
	return result{name: "Ingest", entries: int(p.Files + p.Dirs), errors: int(p.Errors), dur: dur}, nil
}
