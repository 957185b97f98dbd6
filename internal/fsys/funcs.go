package fsys

import (
	"github.com/michaelscutari/readdir/internal/entry"
)

// Funcs overrides individual FileSystem methods. Nil fields fall through to
// the binding being overridden.
type Funcs struct {
	ReadDir func(path string) ([]string, error)
	Stat    func(path string) (*entry.Stats, error)
	Lstat   func(path string) (*entry.Stats, error)
}

// Merge returns base with the non-nil functions of f layered on top.
// Panics raised by the override functions are returned as *PanicError.
func Merge(base FileSystem, f Funcs) FileSystem {
	if base == nil {
		base = OS{}
	}
	return &merged{base: base, funcs: f}
}

type merged struct {
	base  FileSystem
	funcs Funcs
}

func (m *merged) ReadDir(path string) ([]string, error) {
	if m.funcs.ReadDir == nil {
		return m.base.ReadDir(path)
	}
	return Safe(func() ([]string, error) { return m.funcs.ReadDir(path) })
}

func (m *merged) Stat(path string) (*entry.Stats, error) {
	if m.funcs.Stat == nil {
		return m.base.Stat(path)
	}
	return checked(Safe(func() (*entry.Stats, error) { return m.funcs.Stat(path) }))
}

func (m *merged) Lstat(path string) (*entry.Stats, error) {
	if m.funcs.Lstat == nil {
		return m.base.Lstat(path)
	}
	return checked(Safe(func() (*entry.Stats, error) { return m.funcs.Lstat(path) }))
}

func (m *merged) Join(dir, name string) string {
	return Join(m.base, dir, name)
}

func checked(st *entry.Stats, err error) (*entry.Stats, error) {
	if err == nil && st == nil {
		return nil, ErrNoStats
	}
	return st, err
}
