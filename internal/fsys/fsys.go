// Package fsys binds traversal to a filesystem implementation.
//
// The default binding is the operating system. Callers may replace any subset
// of its methods with Funcs, or traverse an io/fs.FS.
package fsys

import (
	"os"
	"path/filepath"

	"github.com/michaelscutari/readdir/internal/entry"
)

// FileSystem is the set of calls a traversal makes.
type FileSystem interface {
	// ReadDir returns the names of the entries in a directory.
	ReadDir(path string) ([]string, error)
	// Stat returns metadata for path, following symbolic links.
	Stat(path string) (*entry.Stats, error)
	// Lstat returns metadata for path without following symbolic links.
	Lstat(path string) (*entry.Stats, error)
}

// Joiner is implemented by bindings whose paths are not OS paths.
type Joiner interface {
	Join(dir, name string) string
}

// Join builds the path of name inside dir the way fsys expects it.
func Join(fsys FileSystem, dir, name string) string {
	if j, ok := fsys.(Joiner); ok {
		return j.Join(dir, name)
	}
	return filepath.Join(dir, name)
}

// OS is the operating system binding.
type OS struct{}

// ReadDir lists names in directory order, without sorting.
func (OS) ReadDir(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (OS) Stat(path string) (*entry.Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return entry.FromFileInfo(info), nil
}

func (OS) Lstat(path string) (*entry.Stats, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return entry.FromFileInfo(info), nil
}
