// Package fs abstracts the file operations the archive performs so tests
// can inject failures.
//
//   - [File]: an open file with write/sync capabilities
//   - [FileSystem]: open, remove, stat, wholesale read
//   - [LocalFS]: production implementation over the os package
//   - [FaultyFS]: fault injection for failure-semantics tests
//
// The interfaces intentionally carry no context.Context: local file
// operations are fast and non-interruptible at the syscall level. Remote
// transfers use blobstore, which is context-aware.
package fs

import (
	"io"
	"os"
)

// File represents an open file.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (LocalFS) Remove(name string) error              { return os.Remove(name) }
func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (LocalFS) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }

// Default is the default local file system.
var Default FileSystem = LocalFS{}
