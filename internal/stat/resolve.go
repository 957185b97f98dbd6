// Package stat resolves directory entry metadata with symlink semantics.
package stat

import (
	"github.com/michaelscutari/readdir/internal/entry"
	"github.com/michaelscutari/readdir/internal/fsys"
)

// Resolve returns the metadata for path.
//
// Symbolic links are followed one level: a link whose target resolves
// reports the target's metadata flagged as a symlink, and a broken link
// reports its own lstat metadata. A failed target stat is never an error.
func Resolve(fs fsys.FileSystem, path string) (*entry.Stats, error) {
	lst, err := fsys.Safe(func() (*entry.Stats, error) { return fs.Lstat(path) })
	if err != nil {
		return nil, err
	}
	if lst == nil {
		return nil, fsys.ErrNoStats
	}
	if !lst.IsSymlink() {
		return lst, nil
	}

	target, err := fsys.Safe(func() (*entry.Stats, error) { return fs.Stat(path) })
	if err != nil || target == nil {
		return lst, nil
	}
	target.MarkSymlink()
	return target, nil
}
