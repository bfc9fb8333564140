//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// blockDeviceSize returns the size in bytes of a block special file using
// the BLKGETSIZE64 ioctl. It returns an error for regular files, letting the
// caller fall back to Stat().Size().
func blockDeviceSize(f *os.File) (uint64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return 0, os.ErrInvalid
	}
	return unix.IoctlGetUint64(int(f.Fd()), unix.BLKGETSIZE64)
}
