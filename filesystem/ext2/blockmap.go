package ext2

import (
	"encoding/binary"

	"github.com/blockfs/embext2/backend"
)

// addrsPerBlock is how many 4-byte block pointers fit in one filesystem
// block — the fan-out factor for indirect blocks.
func (ctx *Context) addrsPerBlock() uint32 { return ctx.blockSize() / 4 }

// zeroBlock overwrites every sector of block with zero bytes. Newly
// allocated index blocks and data blocks must start zeroed so that unused
// pointer slots read back as "not yet allocated" and never-written bytes
// within an allocated data block read back as zero. (A read over an
// unallocated block is a hole and fails with ErrSparseHole.)
func (ctx *Context) zeroBlock(block uint32) error {
	var zero [backend.SectorSize]byte
	spb := ctx.sectorsPerBlock()
	lba, _ := ctx.blockToSector(block, 0)
	for s := uint32(0); s < spb; s++ {
		if err := ctx.writeSector(lba+uint64(s), zero[:]); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) readIndexEntry(block uint32, idx uint32) (uint32, error) {
	lba, off := ctx.blockToSector(block, idx*4)
	var sector [backend.SectorSize]byte
	if err := ctx.readSector(lba, sector[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(sector[off : off+4]), nil
}

func (ctx *Context) writeIndexEntry(block uint32, idx uint32, v uint32) error {
	lba, off := ctx.blockToSector(block, idx*4)
	var sector [backend.SectorSize]byte
	if err := ctx.readSector(lba, sector[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(sector[off:off+4], v)
	return ctx.writeSector(lba, sector[:])
}

// blockForOffset translates a logical block index (a multiple of the block
// size within the file) into the physical block number holding it. When
// allocate is true and the slot, or any index block along the way, is
// unpopulated, a fresh zeroed block is allocated and wired in — all twelve
// direct slots and all three indirection levels, not just the first direct
// slot, correcting the single-slot-only extension the embedded reference
// driver performs.
//
// in is mutated in place (new direct/indirect pointers are recorded in its
// block array); the caller is responsible for persisting the inode
// afterward.
// allocated, when non-nil, is incremented once for every new block (data or
// index) wired in along the way, letting the caller keep the inode's
// 512-byte-sector block count in sync without re-walking the tree.
func (ctx *Context) blockForOffset(in *inode, logicalBlock uint32, allocate bool, isDirectory bool, allocated *uint32) (uint32, error) {
	n := ctx.addrsPerBlock()

	switch {
	case logicalBlock < directPointers:
		ptr := in.block(int(logicalBlock))
		if ptr != 0 {
			return ptr, nil
		}
		if !allocate {
			return 0, nil
		}
		nb, err := ctx.allocateBlock(isDirectory)
		if err != nil {
			return 0, err
		}
		if err := ctx.zeroBlock(nb); err != nil {
			return 0, err
		}
		in.setBlock(int(logicalBlock), nb)
		bump(allocated)
		return nb, nil

	case logicalBlock < directPointers+n:
		return ctx.resolveIndirect(in, singleIndirectSlot, 1, logicalBlock-directPointers, allocate, isDirectory, allocated)

	case logicalBlock < directPointers+n+n*n:
		return ctx.resolveIndirect(in, doubleIndirectSlot, 2, logicalBlock-(directPointers+n), allocate, isDirectory, allocated)

	case logicalBlock < directPointers+n+n*n+n*n*n:
		return ctx.resolveIndirect(in, tripleIndirectSlot, 3, logicalBlock-(directPointers+n+n*n), allocate, isDirectory, allocated)

	default:
		return 0, ErrFileTooLarge
	}
}

func bump(counter *uint32) {
	if counter != nil {
		*counter++
	}
}

// resolveIndirect ensures the inode's indirection-level index block (slot
// singleIndirectSlot/doubleIndirectSlot/tripleIndirectSlot) exists when
// allocate is set, then descends level more levels to the data block at idx.
func (ctx *Context) resolveIndirect(in *inode, slot int, level int, idx uint32, allocate bool, isDirectory bool, allocated *uint32) (uint32, error) {
	ptr := in.block(slot)
	if ptr == 0 {
		if !allocate {
			return 0, nil
		}
		nb, err := ctx.allocateBlock(false)
		if err != nil {
			return 0, err
		}
		if err := ctx.zeroBlock(nb); err != nil {
			return 0, err
		}
		in.setBlock(slot, nb)
		bump(allocated)
		ptr = nb
	}
	return ctx.resolveLevel(ptr, level, idx, allocate, isDirectory, allocated)
}

// resolveLevel walks level-1 further indirection levels under index block
// block, allocating intermediate index blocks and the final data block as
// needed, and returns the physical data block for the given idx.
func (ctx *Context) resolveLevel(block uint32, level int, idx uint32, allocate bool, isDirectory bool, allocated *uint32) (uint32, error) {
	if level == 1 {
		entry, err := ctx.readIndexEntry(block, idx)
		if err != nil {
			return 0, err
		}
		if entry != 0 {
			return entry, nil
		}
		if !allocate {
			return 0, nil
		}
		nb, err := ctx.allocateBlock(isDirectory)
		if err != nil {
			return 0, err
		}
		if err := ctx.zeroBlock(nb); err != nil {
			return 0, err
		}
		if err := ctx.writeIndexEntry(block, idx, nb); err != nil {
			return 0, err
		}
		bump(allocated)
		return nb, nil
	}

	span := pow32(ctx.addrsPerBlock(), level-1)
	childIdx := idx / span
	subIdx := idx % span

	childPtr, err := ctx.readIndexEntry(block, childIdx)
	if err != nil {
		return 0, err
	}
	if childPtr == 0 {
		if !allocate {
			return 0, nil
		}
		nb, err := ctx.allocateBlock(false)
		if err != nil {
			return 0, err
		}
		if err := ctx.zeroBlock(nb); err != nil {
			return 0, err
		}
		if err := ctx.writeIndexEntry(block, childIdx, nb); err != nil {
			return 0, err
		}
		bump(allocated)
		childPtr = nb
	}
	return ctx.resolveLevel(childPtr, level-1, subIdx, allocate, isDirectory, allocated)
}

func pow32(base uint32, exp int) uint32 {
	r := uint32(1)
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

// truncateBlocks frees every block (direct or indirect) whose logical index
// is >= fromLogicalBlock, including index blocks that become entirely empty
// as a result. This walks all three indirection levels symmetrically,
// correcting the reference driver's truncate, which misreads the
// triple-indirect slot and only frees a subset of the freed chain.
func (ctx *Context) truncateBlocks(in *inode, fromLogicalBlock uint32, isDirectory bool) (uint32, error) {
	var freed uint32

	for idx := uint32(0); idx < directPointers; idx++ {
		if idx < fromLogicalBlock {
			continue
		}
		ptr := in.block(int(idx))
		if ptr == 0 {
			continue
		}
		if err := ctx.freeBlock(ptr, isDirectory); err != nil {
			return freed, err
		}
		in.setBlock(int(idx), 0)
		freed++
	}

	n := ctx.addrsPerBlock()
	indirects := []struct {
		slot  int
		level int
		base  uint32
	}{
		{singleIndirectSlot, 1, directPointers},
		{doubleIndirectSlot, 2, directPointers + n},
		{tripleIndirectSlot, 3, directPointers + n + n*n},
	}

	for _, ind := range indirects {
		ptr := in.block(ind.slot)
		if ptr == 0 {
			continue
		}
		empty, n, err := ctx.freeRange(ptr, ind.level, ind.base, fromLogicalBlock, isDirectory)
		freed += n
		if err != nil {
			return freed, err
		}
		if empty {
			if err := ctx.freeBlock(ptr, false); err != nil {
				return freed, err
			}
			in.setBlock(ind.slot, 0)
			freed++
		}
	}
	return freed, nil
}

// freeRange frees every data block reachable from the level-deep index
// block, restricted to logical indices >= fromLogicalBlock, and reports
// whether every entry in block ended up empty (so the caller can free block
// itself). base is the logical block index of entry 0 of this index block.
func (ctx *Context) freeRange(block uint32, level int, base uint32, fromLogicalBlock uint32, isDirectory bool) (bool, uint32, error) {
	n := ctx.addrsPerBlock()
	span := pow32(n, level-1)
	allEmpty := true
	var freed uint32

	for i := uint32(0); i < n; i++ {
		entryStart := base + i*span
		entryEnd := entryStart + span

		entry, err := ctx.readIndexEntry(block, i)
		if err != nil {
			return false, freed, err
		}
		if entry == 0 {
			continue
		}
		if entryEnd <= fromLogicalBlock {
			allEmpty = false
			continue
		}

		if level == 1 {
			if err := ctx.freeBlock(entry, isDirectory); err != nil {
				return false, freed, err
			}
			if err := ctx.writeIndexEntry(block, i, 0); err != nil {
				return false, freed, err
			}
			freed++
			continue
		}

		childEmpty, childFreed, err := ctx.freeRange(entry, level-1, entryStart, fromLogicalBlock, isDirectory)
		freed += childFreed
		if err != nil {
			return false, freed, err
		}
		if childEmpty {
			if err := ctx.freeBlock(entry, false); err != nil {
				return false, freed, err
			}
			if err := ctx.writeIndexEntry(block, i, 0); err != nil {
				return false, freed, err
			}
			freed++
		} else {
			allEmpty = false
		}
	}
	return allEmpty, freed, nil
}
