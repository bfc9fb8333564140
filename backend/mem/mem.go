// Package mem provides an in-memory backend.BlockDevice, used by tests in
// place of a real disk image.
package mem

import (
	"fmt"

	"github.com/blockfs/embext2/backend"
)

// Device is a backend.BlockDevice backed by a byte slice held in memory.
type Device struct {
	sectors  [][]byte
	readOnly bool
}

var _ backend.BlockDevice = (*Device)(nil)

// New creates a Device with the given number of zeroed sectors.
func New(sectorCount uint64, readOnly bool) *Device {
	sectors := make([][]byte, sectorCount)
	for i := range sectors {
		sectors[i] = make([]byte, backend.SectorSize)
	}
	return &Device{sectors: sectors, readOnly: readOnly}
}

// FromImage builds a Device by slicing an existing byte image into sectors.
// len(image) must be a multiple of backend.SectorSize.
func FromImage(image []byte, readOnly bool) (*Device, error) {
	if len(image)%backend.SectorSize != 0 {
		return nil, fmt.Errorf("image length %d is not a multiple of sector size %d", len(image), backend.SectorSize)
	}
	count := len(image) / backend.SectorSize
	sectors := make([][]byte, count)
	for i := 0; i < count; i++ {
		s := make([]byte, backend.SectorSize)
		copy(s, image[i*backend.SectorSize:(i+1)*backend.SectorSize])
		sectors[i] = s
	}
	return &Device{sectors: sectors, readOnly: readOnly}, nil
}

func (d *Device) Init() error {
	return nil
}

func (d *Device) ReadSector(lba uint64, buf []byte) error {
	if lba >= uint64(len(d.sectors)) {
		return backend.ErrOutOfRange
	}
	if len(buf) != backend.SectorSize {
		return fmt.Errorf("buffer must be exactly %d bytes, got %d", backend.SectorSize, len(buf))
	}
	copy(buf, d.sectors[lba])
	return nil
}

func (d *Device) WriteSector(lba uint64, buf []byte) error {
	if d.readOnly {
		return backend.ErrReadOnly
	}
	if lba >= uint64(len(d.sectors)) {
		return backend.ErrOutOfRange
	}
	if len(buf) != backend.SectorSize {
		return fmt.Errorf("buffer must be exactly %d bytes, got %d", backend.SectorSize, len(buf))
	}
	copy(d.sectors[lba], buf)
	return nil
}

func (d *Device) VolumeSize() (uint64, error) {
	return uint64(len(d.sectors)), nil
}

func (d *Device) IsReadOnly() bool {
	return d.readOnly
}

func (d *Device) Halt() error {
	return nil
}

// Image returns the flattened byte contents of every sector, for assertions in tests.
func (d *Device) Image() []byte {
	out := make([]byte, 0, len(d.sectors)*backend.SectorSize)
	for _, s := range d.sectors {
		out = append(out, s...)
	}
	return out
}
