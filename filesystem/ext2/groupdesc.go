package ext2

import "encoding/binary"

// groupDescriptorSize is the classic (32-bit, non-64bit-feature) block
// group descriptor size.
const groupDescriptorSize = 32

// groupDescriptor is one block group's metadata record.
type groupDescriptor struct {
	raw [groupDescriptorSize]byte
}

func groupDescriptorFromBytes(b []byte) *groupDescriptor {
	gd := &groupDescriptor{}
	copy(gd.raw[:], b[:groupDescriptorSize])
	return gd
}

func (g *groupDescriptor) toBytes() []byte {
	out := make([]byte, groupDescriptorSize)
	copy(out, g.raw[:])
	return out
}

func (g *groupDescriptor) blockBitmap() uint32 {
	return binary.LittleEndian.Uint32(g.raw[0x00:0x04])
}

func (g *groupDescriptor) inodeBitmap() uint32 {
	return binary.LittleEndian.Uint32(g.raw[0x04:0x08])
}

func (g *groupDescriptor) inodeTable() uint32 {
	return binary.LittleEndian.Uint32(g.raw[0x08:0x0C])
}

func (g *groupDescriptor) freeBlocksCount() uint16 {
	return binary.LittleEndian.Uint16(g.raw[0x0C:0x0E])
}

func (g *groupDescriptor) setFreeBlocksCount(v uint16) {
	binary.LittleEndian.PutUint16(g.raw[0x0C:0x0E], v)
}

func (g *groupDescriptor) freeInodesCount() uint16 {
	return binary.LittleEndian.Uint16(g.raw[0x0E:0x10])
}

func (g *groupDescriptor) setFreeInodesCount(v uint16) {
	binary.LittleEndian.PutUint16(g.raw[0x0E:0x10], v)
}

func (g *groupDescriptor) usedDirsCount() uint16 {
	return binary.LittleEndian.Uint16(g.raw[0x10:0x12])
}

func (g *groupDescriptor) setUsedDirsCount(v uint16) {
	binary.LittleEndian.PutUint16(g.raw[0x10:0x12], v)
}

func (g *groupDescriptor) equal(o *groupDescriptor) bool {
	return g.raw == o.raw
}
