package ext2

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Byte offsets within the 1024-byte superblock, per the canonical ext2
// on-disk layout (cross-checked against the pack's hellin-go-ext4
// superblock field table).
const (
	sbOffInodesCount      = 0x00
	sbOffBlocksCount      = 0x04
	sbOffRBlocksCount     = 0x08
	sbOffFreeBlocksCount  = 0x0C
	sbOffFreeInodesCount  = 0x10
	sbOffFirstDataBlock   = 0x14
	sbOffLogBlockSize     = 0x18
	sbOffBlocksPerGroup   = 0x20
	sbOffInodesPerGroup   = 0x28
	sbOffMTime            = 0x2C
	sbOffWTime            = 0x30
	sbOffMntCount         = 0x34
	sbOffMaxMntCount      = 0x36
	sbOffMagic            = 0x38
	sbOffState            = 0x3A
	sbOffErrors           = 0x3C
	sbOffRevLevel         = 0x4C
	sbOffFirstIno         = 0x54
	sbOffInodeSize        = 0x58
	sbOffBlockGroupNr     = 0x5A
	sbOffFeatureCompat    = 0x5C
	sbOffFeatureIncompat  = 0x60
	sbOffFeatureRoCompat  = 0x64
	sbOffUUID             = 0x68

	// SuperblockSize is the portion of the superblock this driver reads and
	// writes: one 512-byte sector. Every field this driver cares about
	// (through the feature flags and the UUID) fits well inside the first
	// sector; the remaining bytes of the full 1024-byte on-disk superblock
	// record (volume name, journal fields, hash seed, reserved padding) are
	// never touched, matching the embedded source this is grounded on,
	// which always operates through a single sector-sized buffer.
	SuperblockSize = 512
	// ExtSuperMagic is the magic value identifying an ext2/3/4 superblock.
	ExtSuperMagic uint16 = 0xEF53

	sbStateClean uint16 = 1
	sbStateError uint16 = 2

	roCompatSparseSuper uint32 = 0x0001

	revGoodOld uint32 = 0
	revDynamic uint32 = 1
)

// superblock wraps the raw on-disk bytes. Only the fields this driver reads
// or mutates are exposed through typed accessors; everything else (the
// volume name, preallocation hints, journal fields, and reserved padding
// that would occupy the rest of a full 1024-byte on-disk record) is simply
// never read, matching the embedded source this is grounded on.
type superblock struct {
	raw [SuperblockSize]byte
}

func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < SuperblockSize {
		return nil, fmt.Errorf("superblock data too short: %d bytes", len(b))
	}
	sb := &superblock{}
	copy(sb.raw[:], b[:SuperblockSize])
	if sb.magic() != ExtSuperMagic {
		return nil, fmt.Errorf("%w: bad superblock magic 0x%04x", ErrCorrupt, sb.magic())
	}
	return sb, nil
}

func (s *superblock) toBytes() []byte {
	out := make([]byte, SuperblockSize)
	copy(out, s.raw[:])
	return out
}

func (s *superblock) u32(off int) uint32 { return binary.LittleEndian.Uint32(s.raw[off : off+4]) }
func (s *superblock) setU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(s.raw[off:off+4], v)
}
func (s *superblock) u16(off int) uint16 { return binary.LittleEndian.Uint16(s.raw[off : off+2]) }
func (s *superblock) setU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(s.raw[off:off+2], v)
}

func (s *superblock) magic() uint16           { return s.u16(sbOffMagic) }
func (s *superblock) inodesCount() uint32     { return s.u32(sbOffInodesCount) }
func (s *superblock) blocksCount() uint32     { return s.u32(sbOffBlocksCount) }
func (s *superblock) freeBlocksCount() uint32 { return s.u32(sbOffFreeBlocksCount) }
func (s *superblock) setFreeBlocksCount(v uint32) { s.setU32(sbOffFreeBlocksCount, v) }
func (s *superblock) freeInodesCount() uint32 { return s.u32(sbOffFreeInodesCount) }
func (s *superblock) setFreeInodesCount(v uint32) { s.setU32(sbOffFreeInodesCount, v) }
func (s *superblock) logBlockSize() uint32    { return s.u32(sbOffLogBlockSize) }
func (s *superblock) blocksPerGroup() uint32  { return s.u32(sbOffBlocksPerGroup) }
func (s *superblock) inodesPerGroup() uint32  { return s.u32(sbOffInodesPerGroup) }
func (s *superblock) mntCount() uint16        { return s.u16(sbOffMntCount) }
func (s *superblock) setMntCount(v uint16)    { s.setU16(sbOffMntCount, v) }
func (s *superblock) maxMntCount() uint16     { return s.u16(sbOffMaxMntCount) }
func (s *superblock) state() uint16           { return s.u16(sbOffState) }
func (s *superblock) setState(v uint16)       { s.setU16(sbOffState, v) }
func (s *superblock) setMTime(v uint32)       { s.setU32(sbOffMTime, v) }
func (s *superblock) revLevel() uint32        { return s.u32(sbOffRevLevel) }
func (s *superblock) featureRoCompat() uint32 { return s.u32(sbOffFeatureRoCompat) }
func (s *superblock) setBlockGroupNr(v uint16) { s.setU16(sbOffBlockGroupNr, v) }

// inodeSize returns the on-disk inode record size. Revision 0 filesystems
// fix this at 128 bytes; the field at sbOffInodeSize is only valid for
// EXT2_DYNAMIC_REV (revision 1).
func (s *superblock) inodeSize() uint16 {
	if s.revLevel() == revGoodOld {
		return 128
	}
	return s.u16(sbOffInodeSize)
}

// blockSize returns the filesystem block size in bytes: 1024 << s_log_block_size.
func (s *superblock) blockSize() uint32 {
	return 1024 << s.logBlockSize()
}

func (s *superblock) sparseSuperEnabled() bool {
	return s.revLevel() == revDynamic && s.featureRoCompat()&roCompatSparseSuper != 0
}

func (s *superblock) uuid() uuid.UUID {
	var u uuid.UUID
	copy(u[:], s.raw[sbOffUUID:sbOffUUID+16])
	return u
}

// equal reports whether two superblocks are byte-identical except for the
// self-identifying block-group-number field, which is expected to differ
// (each copy points at the block holding it).
func (s *superblock) equal(o *superblock) bool {
	a := s.raw
	b := o.raw
	binary.LittleEndian.PutUint16(a[sbOffBlockGroupNr:sbOffBlockGroupNr+2], 0)
	binary.LittleEndian.PutUint16(b[sbOffBlockGroupNr:sbOffBlockGroupNr+2], 0)
	return a == b
}
