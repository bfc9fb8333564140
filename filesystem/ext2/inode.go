package ext2

import "encoding/binary"

// Classic 128-byte ext2 inode layout.
const (
	inodeSizeMin = 128

	inoOffMode        = 0x00
	inoOffUID         = 0x02
	inoOffSize        = 0x04
	inoOffATime       = 0x08
	inoOffCTime       = 0x0C
	inoOffMTime       = 0x10
	inoOffDTime       = 0x14
	inoOffGID         = 0x18
	inoOffLinksCount  = 0x1A
	inoOffBlocks      = 0x1C
	inoOffFlags       = 0x20
	inoOffBlockArray  = 0x28
	inoOffGeneration  = 0x64
	inoOffFileACL     = 0x68
	inoOffDirACL      = 0x6C

	// directPointers is how many of the 15 block-pointer slots are direct.
	directPointers     = 12
	singleIndirectSlot = 12
	doubleIndirectSlot = 13
	tripleIndirectSlot = 14
	numBlockPointers   = 15
)

// File type bits within i_mode (S_IFMT mask 0xF000).
const (
	modeTypeMask  uint16 = 0xF000
	ModeDirectory uint16 = 0x4000
	ModeRegular   uint16 = 0x8000
)

// inode is a fixed-size on-disk inode record. Like superblock, it keeps the
// full raw record (at least inodeSizeMin bytes; larger inode sizes carry
// extra fields past 128 bytes that this driver does not interpret but must
// preserve byte-for-byte on store) and exposes typed accessors for the
// fields spec.md's algorithms actually use.
type inode struct {
	number uint32
	raw    []byte // length == superblock.inodeSize()
}

func inodeFromBytes(number uint32, b []byte) *inode {
	raw := make([]byte, len(b))
	copy(raw, b)
	return &inode{number: number, raw: raw}
}

func newInode(number uint32, size uint16) *inode {
	return &inode{number: number, raw: make([]byte, size)}
}

func (i *inode) toBytes() []byte {
	out := make([]byte, len(i.raw))
	copy(out, i.raw)
	return out
}

func (i *inode) u16(off int) uint16 { return binary.LittleEndian.Uint16(i.raw[off : off+2]) }
func (i *inode) setU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(i.raw[off:off+2], v)
}
func (i *inode) u32(off int) uint32 { return binary.LittleEndian.Uint32(i.raw[off : off+4]) }
func (i *inode) setU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(i.raw[off:off+4], v)
}

func (i *inode) mode() uint16     { return i.u16(inoOffMode) }
func (i *inode) setMode(v uint16) { i.setU16(inoOffMode, v) }
func (i *inode) fileType() uint16 { return i.mode() & modeTypeMask }
func (i *inode) isDir() bool      { return i.fileType() == ModeDirectory }

func (i *inode) uid() uint16     { return i.u16(inoOffUID) }
func (i *inode) setUID(v uint16) { i.setU16(inoOffUID, v) }
func (i *inode) gid() uint16     { return i.u16(inoOffGID) }
func (i *inode) setGID(v uint16) { i.setU16(inoOffGID, v) }

// size is the logical byte length of the file.
func (i *inode) size() uint64     { return uint64(i.u32(inoOffSize)) }
func (i *inode) setSize(v uint64) { i.setU32(inoOffSize, uint32(v)) }

func (i *inode) atime() uint32     { return i.u32(inoOffATime) }
func (i *inode) setATime(v uint32) { i.setU32(inoOffATime, v) }
func (i *inode) ctime() uint32     { return i.u32(inoOffCTime) }
func (i *inode) setCTime(v uint32) { i.setU32(inoOffCTime, v) }
func (i *inode) mtime() uint32     { return i.u32(inoOffMTime) }
func (i *inode) setMTime(v uint32) { i.setU32(inoOffMTime, v) }
func (i *inode) dtime() uint32     { return i.u32(inoOffDTime) }
func (i *inode) setDTime(v uint32) { i.setU32(inoOffDTime, v) }

func (i *inode) linksCount() uint16     { return i.u16(inoOffLinksCount) }
func (i *inode) setLinksCount(v uint16) { i.setU16(inoOffLinksCount, v) }

// blocks is the count of 512-byte sectors actually allocated to the file.
func (i *inode) blocks() uint32     { return i.u32(inoOffBlocks) }
func (i *inode) setBlocks(v uint32) { i.setU32(inoOffBlocks, v) }

func (i *inode) flags() uint32     { return i.u32(inoOffFlags) }
func (i *inode) setFlags(v uint32) { i.setU32(inoOffFlags, v) }

// block returns the raw pointer stored in slot idx (0..14: 12 direct, then
// single/double/triple indirect).
func (i *inode) block(idx int) uint32 {
	return i.u32(inoOffBlockArray + idx*4)
}

func (i *inode) setBlock(idx int, v uint32) {
	i.setU32(inoOffBlockArray+idx*4, v)
}

func (i *inode) clearBlocks() {
	for idx := 0; idx < numBlockPointers; idx++ {
		i.setBlock(idx, 0)
	}
}
