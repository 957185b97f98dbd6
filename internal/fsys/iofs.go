package fsys

import (
	"io/fs"
	"path"

	"github.com/michaelscutari/readdir/internal/entry"
)

// FromFS adapts an io/fs.FS. Paths are slash-separated and unrooted, as
// io/fs requires. Lstat uses fs.ReadLinkFS when the FS provides it and
// falls back to Stat otherwise.
func FromFS(fsys fs.FS) FileSystem {
	return ioFS{fsys: fsys}
}

type ioFS struct {
	fsys fs.FS
}

func (f ioFS) ReadDir(name string) ([]string, error) {
	des, err := fs.ReadDir(f.fsys, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names, nil
}

func (f ioFS) Stat(name string) (*entry.Stats, error) {
	info, err := fs.Stat(f.fsys, name)
	if err != nil {
		return nil, err
	}
	return entry.FromFileInfo(info), nil
}

func (f ioFS) Lstat(name string) (*entry.Stats, error) {
	rl, ok := f.fsys.(fs.ReadLinkFS)
	if !ok {
		return f.Stat(name)
	}
	info, err := rl.Lstat(name)
	if err != nil {
		return nil, err
	}
	return entry.FromFileInfo(info), nil
}

func (ioFS) Join(dir, name string) string {
	return path.Join(dir, name)
}
