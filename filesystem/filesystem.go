// Package filesystem provides interfaces and constants shared by filesystem
// implementations. The only implementation in this module is
// github.com/blockfs/embext2/filesystem/ext2.
package filesystem

import (
	"errors"
	"os"
)

var (
	ErrNotSupported       = errors.New("method not supported by this filesystem")
	ErrReadonlyFilesystem = errors.New("read-only filesystem")
)

// FileSystem is a reference to a single mounted filesystem on a block device.
// It intentionally covers only the operations spec.md's public facade
// names: type, open, read-directory, and unmount. Mutating the
// namespace beyond creating regular files (mkdir, symlink, chmod/chown,
// rename, remove) is out of scope for this driver.
type FileSystem interface {
	// Type returns the type of filesystem.
	Type() Type
	// OpenFile opens a handle to read or write a file, creating it if flag
	// includes O_CREATE. perm is only consulted when a new file is created,
	// masked to the low 9 permission bits.
	OpenFile(pathname string, flag int, perm os.FileMode) (File, error)
	// ReadDir reads the directory entries of pathname.
	ReadDir(pathname string) ([]DirEntry, error)
	// Unmount flushes the superblock to a clean state. It does not halt or
	// release the underlying block device.
	Unmount() error
}

// DirEntry is one entry returned by FileSystem.ReadDir.
type DirEntry struct {
	Name    string
	Inode   uint32
	IsDir   bool
}

// Type represents the type of filesystem mounted.
type Type int

const (
	// TypeExt2 is an ext2-compatible filesystem.
	TypeExt2 Type = iota
)
