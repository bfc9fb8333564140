package ext2

import (
	"testing"

	"github.com/blockfs/embext2/backend/mem"
	"github.com/blockfs/embext2/util/bitmap"
)

// Fixture block/inode layout for every test in this package: one block
// group, 1024-byte blocks, 64 blocks, 32 inodes.
//
//	block 0   boot block (never referenced)
//	block 1   superblock
//	block 2   group descriptor table
//	block 3   block bitmap
//	block 4   inode bitmap
//	block 5-8 inode table (32 inodes * 128 bytes = 4096 bytes = 4 blocks)
//	block 9   root directory data
//	block 10-63  free data blocks
//
// Bitmap bit i stands for block i+1, so bit 63 would stand for block 64,
// one past the last block of this 64-block image. It is marked allocated
// to keep the allocator from ever handing that block out.
const (
	fixtureBlockSize     = 1024
	fixtureBlocksCount   = 64
	fixtureBlocksPerGrp  = 64
	fixtureInodesCount   = 32
	fixtureInodesPerGrp  = 32
	fixtureInodeSize     = 128
	fixtureBlockBitmapBk = 3
	fixtureInodeBitmapBk = 4
	fixtureInodeTableBk  = 5
	fixtureInodeTableLen = 4
	fixtureRootDataBk    = 9
	fixtureFreeBlocks    = 54 // 64 - 9 metadata/root blocks - 1 reserved top bit
	fixtureFreeInodes    = 30 // 32 - inode 1 (reserved) - inode 2 (root)
)

type fixture struct {
	dev *mem.Device
	buf []byte
}

func newFixtureImage(t *testing.T) *fixture {
	t.Helper()
	buf := make([]byte, fixtureBlocksCount*fixtureBlockSize)

	sb := &superblock{}
	sb.setU32(sbOffInodesCount, fixtureInodesCount)
	sb.setU32(sbOffBlocksCount, fixtureBlocksCount)
	sb.setU32(sbOffFreeBlocksCount, fixtureFreeBlocks)
	sb.setU32(sbOffFreeInodesCount, fixtureFreeInodes)
	sb.setU32(sbOffFirstDataBlock, 1)
	sb.setU32(sbOffLogBlockSize, 0) // 1024 << 0
	sb.setU32(sbOffBlocksPerGroup, fixtureBlocksPerGrp)
	sb.setU32(sbOffInodesPerGroup, fixtureInodesPerGrp)
	sb.setU16(sbOffMntCount, 0)
	sb.setU16(sbOffMaxMntCount, 20)
	sb.setU16(sbOffMagic, ExtSuperMagic)
	sb.setU16(sbOffState, sbStateClean)
	sb.setU32(sbOffRevLevel, revDynamic)
	sb.setU16(sbOffInodeSize, fixtureInodeSize)
	sb.setU32(sbOffFeatureRoCompat, roCompatSparseSuper)
	copy(sb.raw[sbOffUUID:sbOffUUID+16], []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	})
	copy(buf[1*fixtureBlockSize:1*fixtureBlockSize+SuperblockSize], sb.raw[:])

	gd := &groupDescriptor{}
	setGDPointers(gd, fixtureBlockBitmapBk, fixtureInodeBitmapBk, fixtureInodeTableBk)
	gd.setFreeBlocksCount(fixtureFreeBlocks)
	gd.setFreeInodesCount(fixtureFreeInodes)
	gd.setUsedDirsCount(1)
	copy(buf[2*fixtureBlockSize:2*fixtureBlockSize+groupDescriptorSize], gd.raw[:])

	blockBM := bitmap.FromBytes(make([]byte, fixtureBlockSize))
	for _, i := range []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 63} {
		mustSet(t, blockBM, i)
	}
	copy(buf[fixtureBlockBitmapBk*fixtureBlockSize:(fixtureBlockBitmapBk+1)*fixtureBlockSize], blockBM.ToBytes())

	inodeBM := bitmap.FromBytes(make([]byte, fixtureBlockSize))
	mustSet(t, inodeBM, 0) // inode 1, reserved
	mustSet(t, inodeBM, 1) // inode 2, root directory
	copy(buf[fixtureInodeBitmapBk*fixtureBlockSize:(fixtureInodeBitmapBk+1)*fixtureBlockSize], inodeBM.ToBytes())

	rootIn := newInode(rootInode, fixtureInodeSize)
	rootIn.setMode(ModeDirectory | 0755)
	rootIn.setLinksCount(2)
	rootIn.setSize(fixtureBlockSize)
	rootIn.setBlocks(fixtureBlockSize / 512)
	rootIn.setBlock(0, fixtureRootDataBk)
	inodeTable := make([]byte, fixtureInodeTableLen*fixtureBlockSize)
	copy(inodeTable[(rootInode-1)*fixtureInodeSize:], rootIn.toBytes())
	copy(buf[fixtureInodeTableBk*fixtureBlockSize:], inodeTable)

	rootData := make([]byte, fixtureBlockSize)
	putDirEntry(rootData, dirEntry{inode: rootInode, recLen: minEntryLen(1), nameLen: 1, fileType: ftDirectory, name: "."})
	dotDotOff := int(minEntryLen(1))
	putDirEntry(rootData[dotDotOff:], dirEntry{inode: rootInode, recLen: uint16(fixtureBlockSize - dotDotOff), nameLen: 2, fileType: ftDirectory, name: ".."})
	copy(buf[fixtureRootDataBk*fixtureBlockSize:(fixtureRootDataBk+1)*fixtureBlockSize], rootData)

	dev, err := mem.FromImage(buf, false)
	if err != nil {
		t.Fatalf("building fixture image: %v", err)
	}
	return &fixture{dev: dev, buf: buf}
}

func setGDPointers(gd *groupDescriptor, blockBitmap, inodeBitmap, inodeTable uint32) {
	putU32(gd.raw[0x00:0x04], blockBitmap)
	putU32(gd.raw[0x04:0x08], inodeBitmap)
	putU32(gd.raw[0x08:0x0C], inodeTable)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func mustSet(t *testing.T, bm *bitmap.Bitmap, i int) {
	t.Helper()
	if err := bm.Set(i); err != nil {
		t.Fatalf("setting bitmap bit %d: %v", i, err)
	}
}

// mountFixture mounts a freshly built fixture image with a fixed clock and
// host identity so assertions on stamped timestamps/owners are deterministic.
func mountFixture(t *testing.T) (*Context, *fixture) {
	t.Helper()
	fx := newFixtureImage(t)
	ctx, err := Mount(fx.dev, MountOptions{
		Clock:        FixedClock(1700000000),
		HostIdentity: FixedIdentity{UID: 1000, GID: 1000},
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return ctx, fx
}
