package ext2

import (
	"fmt"

	"github.com/blockfs/embext2/backend"
)

// readInode loads inode number ino from its group's inode table, using a
// local scratch buffer rather than any shared context-wide buffer — every
// metadata read or write in this package works this way, so nothing here
// aliases another in-flight operation's buffer.
func (ctx *Context) readInode(ino uint32) (*inode, error) {
	if ino == 0 || ino > ctx.sb.inodesCount() {
		return nil, fmt.Errorf("%w: inode %d out of range", ErrCorrupt, ino)
	}
	group := (ino - 1) / ctx.sb.inodesPerGroup()
	indexInGroup := (ino - 1) % ctx.sb.inodesPerGroup()

	gd, err := ctx.readGroupDescriptor(group)
	if err != nil {
		return nil, err
	}

	size := uint32(ctx.sb.inodeSize())
	byteOffset := indexInGroup * size
	inodesPerSector := backend.SectorSize / size

	lba, _ := ctx.blockToSector(gd.inodeTable(), (byteOffset/backend.SectorSize)*backend.SectorSize)
	var sector [backend.SectorSize]byte
	if err := ctx.readSector(lba, sector[:]); err != nil {
		return nil, err
	}
	idx := indexInGroup % inodesPerSector
	return inodeFromBytes(ino, sector[idx*size:(idx+1)*size]), nil
}

// writeInode stores an inode back to its slot in the inode table.
func (ctx *Context) writeInode(in *inode) error {
	ino := in.number
	if ino == 0 || ino > ctx.sb.inodesCount() {
		return fmt.Errorf("%w: inode %d out of range", ErrCorrupt, ino)
	}
	group := (ino - 1) / ctx.sb.inodesPerGroup()
	indexInGroup := (ino - 1) % ctx.sb.inodesPerGroup()

	gd, err := ctx.readGroupDescriptor(group)
	if err != nil {
		return err
	}

	size := uint32(ctx.sb.inodeSize())
	byteOffset := indexInGroup * size
	inodesPerSector := backend.SectorSize / size

	lba, _ := ctx.blockToSector(gd.inodeTable(), (byteOffset/backend.SectorSize)*backend.SectorSize)
	var sector [backend.SectorSize]byte
	if err := ctx.readSector(lba, sector[:]); err != nil {
		return err
	}
	idx := indexInGroup % inodesPerSector
	copy(sector[idx*size:(idx+1)*size], in.toBytes())
	if err := ctx.writeSector(lba, sector[:]); err != nil {
		return err
	}
	DebugDumpInode(in)
	return nil
}
