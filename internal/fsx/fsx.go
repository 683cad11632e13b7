// Package fsx provides the filesystem operations the GC coordinator's
// on-disk manifest (internal/gcio) needs: atomic writes, directory
// listing, and a flock-based exclusive lock. Adapted from the reference
// implementation's internal/fs package, trimmed to what gcio actually
// calls and upgraded from syscall.Flock to golang.org/x/sys/unix.Flock.
package fsx

import (
	"bytes"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// File mirrors the subset of *os.File this package's callers need.
type File interface {
	io.ReadWriteCloser
	Fd() uintptr
	Stat() (os.FileInfo, error)
}

// FS is the filesystem abstraction the GC manifest writer is built
// against, so tests can substitute an in-memory fake.
type FS interface {
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
	ReadDir(path string) ([]os.DirEntry, error)
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Remove(path string) error
}

// Real implements [FS] using the real filesystem; all methods are
// passthroughs to the os package except WriteFileAtomic, which uses
// natefinch/atomic's temp-file-plus-rename discipline.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real { return &Real{} }

func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (r *Real) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

var _ FS = (*Real)(nil)
