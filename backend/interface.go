// Package backend defines the contract between the filesystem engine and the
// raw block device it is mounted on top of.
//
// This is deliberately narrower than a general-purpose disk image
// abstraction: a BlockDevice exposes only synchronous, single-sector
// read/write, a fixed sector size, a volume size in sectors, and a
// read-only flag. That is the entire surface a resource-constrained host
// can be expected to offer.
package backend

import "errors"

var (
	// ErrReadOnly is returned by WriteSector when the device was opened read-only.
	ErrReadOnly = errors.New("block device is read-only")
	// ErrOutOfRange is returned when a sector number is beyond the volume size.
	ErrOutOfRange = errors.New("sector number out of range")
)

// SectorSize is the fixed logical sector size this driver operates on, in bytes.
const SectorSize = 512

// BlockDevice is a flat addressable array of fixed-size sectors.
type BlockDevice interface {
	// Init prepares the device for use. It is safe to call more than once.
	Init() error
	// ReadSector reads exactly SectorSize bytes from the given absolute sector into buf.
	ReadSector(lba uint64, buf []byte) error
	// WriteSector writes exactly SectorSize bytes from buf to the given absolute sector.
	WriteSector(lba uint64, buf []byte) error
	// VolumeSize returns the number of SectorSize-byte sectors on the device.
	VolumeSize() (uint64, error)
	// IsReadOnly reports whether the device rejects writes.
	IsReadOnly() bool
	// Halt releases any resources held by the device.
	Halt() error
}
