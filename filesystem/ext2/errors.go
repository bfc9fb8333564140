package ext2

import "errors"

// Sentinel errors corresponding to the error kinds in spec.md §7. Use
// errors.Is against these; internal helpers always wrap one of them so a
// caller several layers up can still tell what kind of failure occurred.
var (
	ErrNoSpace      = errors.New("ext2: no space left on device")
	ErrReadOnly     = errors.New("ext2: filesystem is read-only")
	ErrNotFound     = errors.New("ext2: no such file or directory")
	ErrExist        = errors.New("ext2: file already exists")
	ErrIsDir        = errors.New("ext2: is a directory")
	ErrBadHandle    = errors.New("ext2: bad file handle")
	ErrInvalidArg   = errors.New("ext2: invalid argument")
	ErrOverflow     = errors.New("ext2: seek would overflow")
	ErrIO           = errors.New("ext2: I/O error")
	ErrFileTooLarge = errors.New("ext2: file too large for this block map")
	ErrCorrupt      = errors.New("ext2: on-disk structure is corrupt")
	ErrSparseHole   = errors.New("ext2: read over a sparse hole is not supported")
)
