package entry

import (
	"io/fs"
	"time"
)

// Stats is the metadata record reported for a directory entry.
//
// Path is the logical path built from the configured base path and
// separator, not necessarily a path the OS can open. Depth is the depth of
// the directory that contained the entry (0 for the root's children).
type Stats struct {
	Name       string
	Path       string
	Depth      int
	Mode       fs.FileMode
	Size       int64
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time
	Dev        uint64
	Ino        uint64
	Nlink      uint64
	Uid        uint32
	Gid        uint32
	Rdev       uint64
	Blksize    int64
	Blocks     int64 // 512-byte units

	symlink bool
}

// FromFileInfo builds Stats from an fs.FileInfo, copying the platform stat
// fields when Sys() exposes them.
func FromFileInfo(info fs.FileInfo) *Stats {
	s := &Stats{
		Name:    info.Name(),
		Mode:    info.Mode(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	s.AccessTime = s.ModTime
	s.ChangeTime = s.ModTime
	fillSys(s, info.Sys())
	return s
}

// IsFile reports whether the entry (or its symlink target) is a regular file.
func (s *Stats) IsFile() bool {
	return s.Mode.IsRegular()
}

// IsDir reports whether the entry (or its symlink target) is a directory.
func (s *Stats) IsDir() bool {
	return s.Mode.IsDir()
}

// IsSymlink reports whether the entry was reached through a symbolic link.
// It stays true after the link's target has been resolved.
func (s *Stats) IsSymlink() bool {
	return s.symlink || s.Mode&fs.ModeSymlink != 0
}

// MarkSymlink flags resolved target stats as having been reached through a link.
func (s *Stats) MarkSymlink() {
	s.symlink = true
}

// DiskUsage returns the allocated size in bytes.
func (s *Stats) DiskUsage() int64 {
	return s.Blocks * 512
}
