package ext2

import (
	"encoding/binary"
	"fmt"
)

// Directory entry file-type byte (EXT2_FT_* from the rev1 filetype feature).
const (
	ftUnknown   uint8 = 0
	ftRegular   uint8 = 1
	ftDirectory uint8 = 2
)

const dirEntryHeaderLen = 8

// dirEntry is one parsed directory record. recLen is always a multiple of
// 4 and never crosses a block boundary; a zeroed inode field marks a
// tombstoned (deleted, but not yet coalesced) slot that future appends may
// reuse.
type dirEntry struct {
	inode    uint32
	recLen   uint16
	nameLen  uint8
	fileType uint8
	name     string
}

func roundUp4(n int) int { return (n + 3) &^ 3 }

func minEntryLen(nameLen int) uint16 {
	return uint16(dirEntryHeaderLen + roundUp4(nameLen))
}

func parseDirEntry(b []byte) dirEntry {
	e := dirEntry{
		inode:    binary.LittleEndian.Uint32(b[0:4]),
		recLen:   binary.LittleEndian.Uint16(b[4:6]),
		nameLen:  b[6],
		fileType: b[7],
	}
	if int(e.nameLen) > 0 && dirEntryHeaderLen+int(e.nameLen) <= len(b) {
		e.name = string(b[dirEntryHeaderLen : dirEntryHeaderLen+int(e.nameLen)])
	}
	return e
}

func putDirEntry(b []byte, e dirEntry) {
	binary.LittleEndian.PutUint32(b[0:4], e.inode)
	binary.LittleEndian.PutUint16(b[4:6], e.recLen)
	b[6] = e.nameLen
	b[7] = e.fileType
	copy(b[dirEntryHeaderLen:], e.name)
}

func putRecLen(b []byte, recLen uint16) {
	binary.LittleEndian.PutUint16(b[4:6], recLen)
}

func (ctx *Context) readBlock(block uint32) ([]byte, error) {
	data := make([]byte, ctx.blockSize())
	lba, _ := ctx.blockToSector(block, 0)
	spb := ctx.sectorsPerBlock()
	for s := uint32(0); s < spb; s++ {
		if err := ctx.readSector(lba+uint64(s), data[s*512:(s+1)*512]); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (ctx *Context) writeBlock(block uint32, data []byte) error {
	lba, _ := ctx.blockToSector(block, 0)
	spb := ctx.sectorsPerBlock()
	for s := uint32(0); s < spb; s++ {
		if err := ctx.writeSector(lba+uint64(s), data[s*512:(s+1)*512]); err != nil {
			return err
		}
	}
	return nil
}

// forEachDirBlock visits every logical data block currently allocated to
// dirIn, stopping early with that error if visit returns a non-nil error,
// or cleanly if visit returns true.
func (ctx *Context) forEachDirBlock(dirIn *inode, visit func(phys uint32, data []byte) (bool, error)) error {
	blockSize := uint64(ctx.blockSize())
	numBlocks := uint32((dirIn.size() + blockSize - 1) / blockSize)
	for lb := uint32(0); lb < numBlocks; lb++ {
		phys, err := ctx.blockForOffset(dirIn, lb, false, false, nil)
		if err != nil {
			return err
		}
		if phys == 0 {
			continue
		}
		data, err := ctx.readBlock(phys)
		if err != nil {
			return err
		}
		stop, err := visit(phys, data)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// readDirectory returns every live (non-tombstoned) entry in dirIn's data,
// in on-disk order, by linearly walking every allocated block the way the
// embedded reference readdir() does.
func (ctx *Context) readDirectory(dirIn *inode) ([]dirEntry, error) {
	var entries []dirEntry
	err := ctx.forEachDirBlock(dirIn, func(_ uint32, data []byte) (bool, error) {
		offset := 0
		for offset+dirEntryHeaderLen <= len(data) {
			e := parseDirEntry(data[offset:])
			if e.recLen == 0 {
				break
			}
			if e.inode != 0 {
				entries = append(entries, e)
			}
			offset += int(e.recLen)
		}
		return false, nil
	})
	return entries, err
}

// lookupInDirectory performs the linear scan spec.md §4.4 describes: an
// exact match on one path component within one directory's data.
func (ctx *Context) lookupInDirectory(dirIn *inode, name string) (uint32, uint8, error) {
	var foundIno uint32
	var foundType uint8
	err := ctx.forEachDirBlock(dirIn, func(_ uint32, data []byte) (bool, error) {
		offset := 0
		for offset+dirEntryHeaderLen <= len(data) {
			e := parseDirEntry(data[offset:])
			if e.recLen == 0 {
				break
			}
			if e.inode != 0 && e.name == name {
				foundIno = e.inode
				foundType = e.fileType
				return true, nil
			}
			offset += int(e.recLen)
		}
		return false, nil
	})
	if err != nil {
		return 0, 0, err
	}
	if foundIno == 0 {
		return 0, 0, ErrNotFound
	}
	return foundIno, foundType, nil
}

// appendToDirectory adds a (name, inode) record to dirIn's data, reusing a
// tombstoned slot or splitting slack off the tail of an oversized record
// before falling back to allocating a brand new directory block — the
// slack-reuse-then-grow order the embedded source's directory append
// follows.
func (ctx *Context) appendToDirectory(dirIn *inode, name string, ino uint32, fileType uint8) error {
	if len(name) == 0 || len(name) > 255 {
		return fmt.Errorf("%w: invalid directory entry name length %d", ErrInvalidArg, len(name))
	}
	blockSize := ctx.blockSize()
	if dirIn.size()%uint64(blockSize) != 0 {
		return fmt.Errorf("%w: directory size %d is not a multiple of block size %d", ErrCorrupt, dirIn.size(), blockSize)
	}
	needed := minEntryLen(len(name))

	placed := false
	err := ctx.forEachDirBlock(dirIn, func(phys uint32, data []byte) (bool, error) {
		offset := 0
		for offset+dirEntryHeaderLen <= len(data) {
			e := parseDirEntry(data[offset:])
			if e.recLen == 0 {
				break
			}

			if e.inode == 0 && e.recLen >= needed {
				putDirEntry(data[offset:], dirEntry{inode: ino, recLen: e.recLen, nameLen: uint8(len(name)), fileType: fileType, name: name})
				if err := ctx.writeBlock(phys, data); err != nil {
					return false, err
				}
				placed = true
				return true, nil
			}

			used := minEntryLen(int(e.nameLen))
			if e.inode != 0 && e.recLen-used >= needed {
				putRecLen(data[offset:], used)
				newOff := offset + int(used)
				putDirEntry(data[newOff:], dirEntry{inode: ino, recLen: e.recLen - used, nameLen: uint8(len(name)), fileType: fileType, name: name})
				if err := ctx.writeBlock(phys, data); err != nil {
					return false, err
				}
				placed = true
				return true, nil
			}

			offset += int(e.recLen)
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if placed {
		return nil
	}

	numBlocks := uint32((dirIn.size() + uint64(blockSize) - 1) / uint64(blockSize))
	var allocated uint32
	phys, err := ctx.blockForOffset(dirIn, numBlocks, true, true, &allocated)
	if err != nil {
		return err
	}
	if allocated > 0 {
		dirIn.setBlocks(dirIn.blocks() + allocated*ctx.sectorsPerBlock())
	}

	data := make([]byte, blockSize)
	putDirEntry(data, dirEntry{inode: ino, recLen: uint16(blockSize), nameLen: uint8(len(name)), fileType: fileType, name: name})
	if err := ctx.writeBlock(phys, data); err != nil {
		return err
	}

	dirIn.setSize(uint64(numBlocks+1) * uint64(blockSize))
	return nil
}

// deleteFromDirectory removes name's record from dirIn's data. When a
// preceding record shares the same block, its rec_len absorbs the freed
// span so the space is reusable by a later append without walking a
// tombstone. When name's record sits first in its block (no preceding
// record to coalesce into), its inode field is simply zeroed, leaving it as
// a tombstoned slot a later append can still reuse by name length.
//
// The embedded reference driver declares this operation but never
// implements it.
func (ctx *Context) deleteFromDirectory(dirIn *inode, name string) error {
	found := false
	err := ctx.forEachDirBlock(dirIn, func(phys uint32, data []byte) (bool, error) {
		offset := 0
		prevOffset := -1
		for offset+dirEntryHeaderLen <= len(data) {
			e := parseDirEntry(data[offset:])
			if e.recLen == 0 {
				break
			}
			if e.inode != 0 && e.name == name {
				if prevOffset >= 0 {
					prev := parseDirEntry(data[prevOffset:])
					putRecLen(data[prevOffset:], prev.recLen+e.recLen)
				} else {
					binary.LittleEndian.PutUint32(data[offset:offset+4], 0)
				}
				if err := ctx.writeBlock(phys, data); err != nil {
					return false, err
				}
				found = true
				return true, nil
			}
			prevOffset = offset
			offset += int(e.recLen)
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}
