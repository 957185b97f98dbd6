package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/michaelscutari/readdir"
	"github.com/michaelscutari/readdir/internal/config"
	"github.com/michaelscutari/readdir/internal/options"
)

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory tree",
	Long: `List the entries under dir (default ".").

--deep accepts true, false, a maximum depth, or a glob matched against
directory paths. --filter is a glob matched against entry paths.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

type lsFlags struct {
	deep        string
	deepRegex   string
	filter      string
	filterRegex string
	kind        string
	stats       bool
	sep         string
	basePath    string
	mode        string
	format      string
}

var ls lsFlags

func init() {
	f := lsCmd.Flags()
	f.StringVar(&ls.deep, "deep", "false", "Recursion: true|false|N|glob")
	f.StringVar(&ls.deepRegex, "deep-regex", "", "Recurse into directories whose path matches this regexp")
	f.StringVar(&ls.filter, "filter", "", "Report entries whose path matches this glob")
	f.StringVar(&ls.filterRegex, "filter-regex", "", "Report entries whose path matches this regexp")
	f.StringVar(&ls.kind, "type", "", "Report only entries of this type: file|dir|symlink")
	f.BoolVarP(&ls.stats, "stats", "l", false, "Long listing with metadata")
	f.StringVar(&ls.sep, "sep", "", "Separator used in reported paths (default OS separator)")
	f.StringVar(&ls.basePath, "base-path", "", "Prefix for reported paths")
	f.StringVar(&ls.mode, "mode", "sync", "Traversal mode: sync|async|stream|iter")
	f.StringVar(&ls.format, "format", "text", "Output format: text|yaml")
}

// mergeConfig fills flags the user did not set from the loaded config.
func (l *lsFlags) mergeConfig(cmd *cobra.Command, c *config.Config) {
	set := func(name string, dst *string, v string) {
		if !cmd.Flags().Changed(name) && v != "" {
			*dst = v
		}
	}
	set("deep", &l.deep, c.Deep)
	set("filter", &l.filter, c.Filter)
	set("sep", &l.sep, c.Sep)
	set("base-path", &l.basePath, c.BasePath)
	set("mode", &l.mode, c.Mode)
	if !cmd.Flags().Changed("stats") && c.Stats {
		l.stats = true
	}
}

func runLs(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	ls.mergeConfig(cmd, cfg)

	opts, err := ls.options()
	if err != nil {
		return err
	}
	if ls.format != "text" && ls.format != "yaml" {
		return fmt.Errorf("invalid format %q (expected text|yaml)", ls.format)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	results, err := list(ctx, dir, opts, ls.mode)
	if err != nil {
		return err
	}
	log.LogDebug(fmt.Sprintf("listed %d entries in %s", len(results), time.Since(start).Round(time.Millisecond)))

	if ls.format == "yaml" {
		return writeYAML(cmd.OutOrStdout(), results)
	}
	writeText(cmd.OutOrStdout(), results, ls.stats)
	return nil
}

// options translates flags into traversal options. Stats are always
// requested so that text output can colour by type.
func (l *lsFlags) options() (*readdir.Options, error) {
	opts := &readdir.Options{Sep: l.sep, BasePath: l.basePath, Stats: true}

	if l.deepRegex != "" {
		re, err := regexp.Compile(l.deepRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid --deep-regex: %w", err)
		}
		opts.Deep = re
	} else {
		deep, err := config.ParseDeep(l.deep)
		if err != nil {
			return nil, err
		}
		opts.Deep = deep
	}

	if l.filter != "" && l.filterRegex != "" {
		return nil, errors.New("--filter and --filter-regex are mutually exclusive")
	}
	var filter any
	switch {
	case l.filterRegex != "":
		re, err := regexp.Compile(l.filterRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter-regex: %w", err)
		}
		filter = re
	case l.filter != "":
		filter = l.filter
	}

	if l.kind == "" {
		opts.Filter = filter
		return opts, nil
	}

	match, err := typeMatcher(l.kind)
	if err != nil {
		return nil, err
	}
	pred, err := options.CompileFilter(filter, l.sep)
	if err != nil {
		return nil, err
	}
	opts.Filter = func(st *readdir.Stats) (bool, error) {
		if !match(st) {
			return false, nil
		}
		if pred == nil {
			return true, nil
		}
		return pred(st)
	}
	return opts, nil
}

func typeMatcher(kind string) (func(*readdir.Stats) bool, error) {
	switch kind {
	case "file", "f":
		return (*readdir.Stats).IsFile, nil
	case "dir", "d":
		return (*readdir.Stats).IsDir, nil
	case "symlink", "l":
		return (*readdir.Stats).IsSymlink, nil
	}
	return nil, fmt.Errorf("invalid --type %q (expected file|dir|symlink)", kind)
}

// errListingStopped wraps the first error of an aggregating mode. Those
// modes discard partial results, so the listing fails instead of printing
// an incomplete tree.
var errListingStopped = errors.New("listing stopped at first error (--mode stream continues past errors)")

// list runs the traversal through the requested API surface. Only stream
// mode logs soft errors and keeps going.
func list(ctx context.Context, dir string, opts *readdir.Options, mode string) ([]*readdir.Stats, error) {
	var out []*readdir.Stats
	var err error

	switch mode {
	case "sync":
		out, err = readdir.ReadSyncStats(dir, opts)
	case "async":
		out, err = readdir.ReadStats(ctx, dir, opts)
	case "stream":
		out, err = listStream(ctx, dir, opts)
	case "iter":
		for st, e := range readdir.IterStats(ctx, dir, opts) {
			if e != nil {
				err = e
				break
			}
			out = append(out, st)
		}
	default:
		return nil, fmt.Errorf("invalid mode %q (expected %s)", mode, strings.Join(config.Modes, "|"))
	}

	if err != nil && !readdir.IsFatal(err) {
		return nil, fmt.Errorf("%w: %w", errListingStopped, err)
	}
	return out, err
}

// listStream keeps going past soft errors, which are logged as they occur.
func listStream(ctx context.Context, dir string, opts *readdir.Options) ([]*readdir.Stats, error) {
	s, err := readdir.NewStreamStats(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	var fatal error
	s.OnError(func(err error) {
		if readdir.IsFatal(err) {
			mu.Lock()
			fatal = err
			mu.Unlock()
			return
		}
		log.LogWarn(err.Error())
	})

	var out []*readdir.Stats
	for e := range s.Start() {
		out = append(out, e.Stats)
	}
	<-s.Done()
	mu.Lock()
	defer mu.Unlock()
	return out, fatal
}

type lsRecord struct {
	Path    string    `yaml:"path"`
	Type    string    `yaml:"type"`
	Size    int64     `yaml:"size"`
	Mode    string    `yaml:"mode"`
	ModTime time.Time `yaml:"mtime"`
}

func typeName(st *readdir.Stats) string {
	switch {
	case st.IsSymlink():
		return "symlink"
	case st.IsDir():
		return "dir"
	case st.IsFile():
		return "file"
	}
	return "other"
}

func writeYAML(w io.Writer, entries []*readdir.Stats) error {
	records := make([]lsRecord, len(entries))
	for i, st := range entries {
		records[i] = lsRecord{
			Path:    st.Path,
			Type:    typeName(st),
			Size:    st.Size,
			Mode:    st.Mode.String(),
			ModTime: st.ModTime.UTC(),
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

var (
	dirColor     = color.New(color.FgBlue, color.Bold)
	symlinkColor = color.New(color.FgCyan)
)

// writeText prints paths in traversal-independent sorted order.
func writeText(w io.Writer, entries []*readdir.Stats, long bool) {
	slices.SortFunc(entries, func(a, b *readdir.Stats) int { return strings.Compare(a.Path, b.Path) })

	for _, st := range entries {
		name := st.Path
		switch {
		case st.IsSymlink():
			name = symlinkColor.Sprint(name)
		case st.IsDir():
			name = dirColor.Sprint(name)
		}
		if !long {
			fmt.Fprintln(w, name)
			continue
		}
		fmt.Fprintf(w, "%s %8s %s %s\n",
			st.Mode.String(),
			humanize.IBytes(uint64(max(st.Size, 0))),
			st.ModTime.Format("Jan _2 15:04"),
			name,
		)
	}
}
