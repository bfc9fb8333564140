//go:build !linux

package file

import "os"

// blockDeviceSize is only meaningful on Linux, where BLKGETSIZE64 exists;
// elsewhere every backing file is sized via Stat().
func blockDeviceSize(_ *os.File) (uint64, error) {
	return 0, os.ErrInvalid
}
