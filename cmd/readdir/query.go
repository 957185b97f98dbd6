package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/readdir/internal/db"
	"github.com/michaelscutari/readdir/internal/entry"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a snapshot non-interactively",
	Long:  `Query a snapshot database and output results for scripting.`,
	RunE:  runQuery,
}

var (
	queryDB    string
	queryPath  string
	querySort  string
	queryLimit int
	queryType  string
)

func init() {
	queryCmd.Flags().StringVarP(&queryDB, "db", "d", "", "Path to database file (default <scan.out>/latest.db)")
	queryCmd.Flags().StringVarP(&queryPath, "path", "p", "", "Directory path to query (default scan root)")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "size", "Sort by: size, disk, name, files, mtime")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of results")
	queryCmd.Flags().StringVarP(&queryType, "type", "t", "", "Only list entries of this kind: file, dir, symlink, other")
}

func runQuery(cmd *cobra.Command, args []string) error {
	database, err := openSnapshot(queryDB)
	if err != nil {
		return err
	}
	defer database.Close()

	if queryPath == "" {
		meta, err := db.GetScanMeta(database)
		if err != nil {
			return err
		}
		queryPath = meta.RootPath
	}

	q := db.ChildQuery{Parent: queryPath, Sort: querySort, Limit: queryLimit}
	if queryType != "" {
		kind, err := kindFlag(queryType)
		if err != nil {
			return err
		}
		q.Kind = &kind
	}

	entries, err := db.QueryChildren(database, q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "APPARENT\tDISK\tFILES\tDIRS\tMODIFIED\tINODE\tNAME\n")
	for _, e := range entries {
		name := e.Name
		if e.Symlink {
			name += "@"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			humanize.Bytes(uint64(e.TotalSize)),
			humanize.Bytes(uint64(e.TotalBlocks)),
			humanize.Comma(e.TotalFiles),
			humanize.Comma(e.TotalDirs),
			humanize.Time(e.ModTime),
			e.Inode,
			name,
		)
	}
	return w.Flush()
}

func kindFlag(s string) (entry.Kind, error) {
	for _, k := range []entry.Kind{entry.KindFile, entry.KindDir, entry.KindSymlink, entry.KindOther} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown --type %q (want file, dir, symlink or other)", s)
}
