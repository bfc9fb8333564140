// Package file adapts an *os.File (a disk image or a /dev/... block special
// file) to the backend.BlockDevice contract.
package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/blockfs/embext2/backend"
)

// fileDevice implements backend.BlockDevice over an *os.File.
type fileDevice struct {
	f        *os.File
	readOnly bool
}

var _ backend.BlockDevice = (*fileDevice)(nil)

// New wraps an already-open *os.File as a BlockDevice.
func New(f *os.File, readOnly bool) backend.BlockDevice {
	return &fileDevice{f: f, readOnly: readOnly}
}

// OpenFromPath opens a path to a device or disk image.
// Should pass a path to a block device e.g. /dev/sda or a path to a file /tmp/foo.img.
// The provided device/file must exist at the time you call OpenFromPath().
func OpenFromPath(pathName string, readOnly bool) (backend.BlockDevice, error) {
	if pathName == "" {
		return nil, errors.New("must pass device or file name")
	}
	if _, err := os.Stat(pathName); os.IsNotExist(err) {
		return nil, fmt.Errorf("provided device/file %s does not exist", pathName)
	}

	openMode := os.O_RDONLY
	if !readOnly {
		openMode = os.O_RDWR
	}

	f, err := os.OpenFile(pathName, openMode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s with mode %v: %w", pathName, openMode, err)
	}

	return &fileDevice{f: f, readOnly: readOnly}, nil
}

func (d *fileDevice) Init() error {
	return nil
}

func (d *fileDevice) ReadSector(lba uint64, buf []byte) error {
	if len(buf) != backend.SectorSize {
		return fmt.Errorf("buffer must be exactly %d bytes, got %d", backend.SectorSize, len(buf))
	}
	n, err := d.f.ReadAt(buf, int64(lba)*backend.SectorSize)
	if err != nil {
		return fmt.Errorf("reading sector %d: %w", lba, err)
	}
	if n != backend.SectorSize {
		return fmt.Errorf("short read of sector %d: got %d bytes", lba, n)
	}
	return nil
}

func (d *fileDevice) WriteSector(lba uint64, buf []byte) error {
	if d.readOnly {
		return backend.ErrReadOnly
	}
	if len(buf) != backend.SectorSize {
		return fmt.Errorf("buffer must be exactly %d bytes, got %d", backend.SectorSize, len(buf))
	}
	n, err := d.f.WriteAt(buf, int64(lba)*backend.SectorSize)
	if err != nil {
		return fmt.Errorf("writing sector %d: %w", lba, err)
	}
	if n != backend.SectorSize {
		return fmt.Errorf("short write of sector %d: wrote %d bytes", lba, n)
	}
	return nil
}

func (d *fileDevice) VolumeSize() (uint64, error) {
	if size, err := blockDeviceSize(d.f); err == nil {
		return size / backend.SectorSize, nil
	}
	fi, err := d.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat device: %w", err)
	}
	return uint64(fi.Size()) / backend.SectorSize, nil
}

func (d *fileDevice) IsReadOnly() bool {
	return d.readOnly
}

func (d *fileDevice) Halt() error {
	return d.f.Close()
}
