package ext2

import (
	"fmt"

	"github.com/blockfs/embext2/util/bitmap"
)

// changeAllocated flips the allocation bit for block in its owning group's
// block bitmap, validating that the bit's current state matches what the
// caller expects before flipping it — a double-free or double-alloc is
// treated as on-disk corruption rather than silently accepted, matching
// embext.c's change_allocated.
//
// It updates the owning group descriptor's free-block count (and, for a
// directory block, the group's used-directories count) and mirrors the
// descriptor to every superblock copy's descriptor table. It also updates
// the in-memory superblock free-block counter, but — matching the embedded
// source — does not flush the superblock to disk; callers that need the
// counter durable must call flushSuperblock explicitly.
func (ctx *Context) changeAllocated(block uint32, allocate bool, isDirectory bool) error {
	if block == 0 || block >= ctx.sb.blocksCount() {
		return fmt.Errorf("%w: block %d out of range", ErrCorrupt, block)
	}
	group := (block - 1) / ctx.sb.blocksPerGroup()
	offsetInGroup := int((block - 1) % ctx.sb.blocksPerGroup())

	gd, err := ctx.readGroupDescriptor(group)
	if err != nil {
		return err
	}

	blockData, err := ctx.readBlock(gd.blockBitmap())
	if err != nil {
		return err
	}
	bm := bitmap.FromBytes(blockData)

	set, err := bm.IsSet(offsetInGroup)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if set == allocate {
		state := "free"
		if set {
			state = "allocated"
		}
		return fmt.Errorf("%w: block %d already %s", ErrCorrupt, block, state)
	}

	if allocate {
		if err := bm.Set(offsetInGroup); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	} else {
		if err := bm.Clear(offsetInGroup); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if err := ctx.writeBlock(gd.blockBitmap(), bm.ToBytes()); err != nil {
		return err
	}

	if allocate {
		gd.setFreeBlocksCount(gd.freeBlocksCount() - 1)
		ctx.sb.setFreeBlocksCount(ctx.sb.freeBlocksCount() - 1)
		if isDirectory {
			gd.setUsedDirsCount(gd.usedDirsCount() + 1)
		}
	} else {
		gd.setFreeBlocksCount(gd.freeBlocksCount() + 1)
		ctx.sb.setFreeBlocksCount(ctx.sb.freeBlocksCount() + 1)
		if isDirectory {
			gd.setUsedDirsCount(gd.usedDirsCount() - 1)
		}
	}

	return ctx.writeGroupDescriptor(group, gd)
}

// changeAllocatedInode is changeAllocated's inode-bitmap counterpart. Unlike
// block allocation, the embedded source flushes the superblock immediately
// after adjusting the free-inode counter, so this method does the same.
func (ctx *Context) changeAllocatedInode(ino uint32, allocate bool) error {
	if ino == 0 || ino > ctx.sb.inodesCount() {
		return fmt.Errorf("%w: inode %d out of range", ErrCorrupt, ino)
	}
	group := (ino - 1) / ctx.sb.inodesPerGroup()
	offsetInGroup := int((ino - 1) % ctx.sb.inodesPerGroup())

	gd, err := ctx.readGroupDescriptor(group)
	if err != nil {
		return err
	}

	blockData, err := ctx.readBlock(gd.inodeBitmap())
	if err != nil {
		return err
	}
	bm := bitmap.FromBytes(blockData)

	set, err := bm.IsSet(offsetInGroup)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if set == allocate {
		state := "free"
		if set {
			state = "allocated"
		}
		return fmt.Errorf("%w: inode %d already %s", ErrCorrupt, ino, state)
	}

	if allocate {
		if err := bm.Set(offsetInGroup); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	} else {
		if err := bm.Clear(offsetInGroup); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if err := ctx.writeBlock(gd.inodeBitmap(), bm.ToBytes()); err != nil {
		return err
	}

	if allocate {
		gd.setFreeInodesCount(gd.freeInodesCount() - 1)
		ctx.sb.setFreeInodesCount(ctx.sb.freeInodesCount() - 1)
	} else {
		gd.setFreeInodesCount(gd.freeInodesCount() + 1)
		ctx.sb.setFreeInodesCount(ctx.sb.freeInodesCount() + 1)
	}

	if err := ctx.writeGroupDescriptor(group, gd); err != nil {
		return err
	}
	return ctx.flushSuperblock()
}

// allocateBlock scans every block group's descriptor for the group with the
// most free blocks (ties broken toward the lowest-numbered group), then
// scans that group's block bitmap for the first clear bit. Returns the
// absolute block number of the newly allocated block.
func (ctx *Context) allocateBlock(isDirectory bool) (uint32, error) {
	if ctx.sb.freeBlocksCount() == 0 {
		return 0, ErrNoSpace
	}

	best, bestGD, err := ctx.groupWithMostFreeBlocks()
	if err != nil {
		return 0, err
	}
	if bestGD == nil {
		return 0, ErrNoSpace
	}

	blocksInGroup := ctx.sb.blocksPerGroup()
	if best == ctx.numGroups-1 {
		if rem := ctx.sb.blocksCount() % ctx.sb.blocksPerGroup(); rem != 0 {
			blocksInGroup = rem
		}
	}

	blockData, err := ctx.readBlock(bestGD.blockBitmap())
	if err != nil {
		return 0, err
	}
	bm := bitmap.FromBytes(blockData)
	free := bm.FirstFree(0)
	if free < 0 || uint32(free) >= blocksInGroup {
		return 0, fmt.Errorf("%w: group %d descriptor claims free blocks but bitmap is full", ErrCorrupt, best)
	}

	block := best*ctx.sb.blocksPerGroup() + uint32(free) + 1
	if err := ctx.changeAllocated(block, true, isDirectory); err != nil {
		return 0, err
	}
	return block, nil
}

// allocateInode is allocateBlock's inode-table counterpart: scan every
// group for the most free inodes (lowest group wins ties), then the first
// clear bit in that group's inode bitmap.
func (ctx *Context) allocateInode() (uint32, error) {
	if ctx.sb.freeInodesCount() == 0 {
		return 0, ErrNoSpace
	}

	best, bestGD, err := ctx.groupWithMostFreeInodes()
	if err != nil {
		return 0, err
	}
	if bestGD == nil {
		return 0, ErrNoSpace
	}

	blockData, err := ctx.readBlock(bestGD.inodeBitmap())
	if err != nil {
		return 0, err
	}
	bm := bitmap.FromBytes(blockData)
	free := bm.FirstFree(0)
	if free < 0 || uint32(free) >= ctx.sb.inodesPerGroup() {
		return 0, fmt.Errorf("%w: group %d descriptor claims free inodes but bitmap is full", ErrCorrupt, best)
	}

	ino := best*ctx.sb.inodesPerGroup() + uint32(free) + 1
	if err := ctx.changeAllocatedInode(ino, true); err != nil {
		return 0, err
	}
	return ino, nil
}

func (ctx *Context) groupWithMostFreeBlocks() (uint32, *groupDescriptor, error) {
	var best uint32
	var bestFree uint16
	var bestGD *groupDescriptor
	for g := uint32(0); g < ctx.numGroups; g++ {
		gd, err := ctx.readGroupDescriptor(g)
		if err != nil {
			return 0, nil, err
		}
		if gd.freeBlocksCount() > bestFree {
			bestFree = gd.freeBlocksCount()
			best = g
			bestGD = gd
		}
	}
	return best, bestGD, nil
}

func (ctx *Context) groupWithMostFreeInodes() (uint32, *groupDescriptor, error) {
	var best uint32
	var bestFree uint16
	var bestGD *groupDescriptor
	for g := uint32(0); g < ctx.numGroups; g++ {
		gd, err := ctx.readGroupDescriptor(g)
		if err != nil {
			return 0, nil, err
		}
		if gd.freeInodesCount() > bestFree {
			bestFree = gd.freeInodesCount()
			best = g
			bestGD = gd
		}
	}
	return best, bestGD, nil
}

// freeBlock releases block back to its group's bitmap.
func (ctx *Context) freeBlock(block uint32, isDirectory bool) error {
	return ctx.changeAllocated(block, false, isDirectory)
}

// freeInode releases ino back to its group's bitmap.
func (ctx *Context) freeInode(ino uint32) error {
	return ctx.changeAllocatedInode(ino, false)
}
