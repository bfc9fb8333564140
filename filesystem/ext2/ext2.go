// Package ext2 implements a read/write driver for a second-extended-
// filesystem-compatible volume, suitable for a host that exposes only a
// raw block device: mount/unmount, path resolution, directory traversal,
// and buffered file I/O through the classic direct/indirect block map.
//
// Journaling, htree directories, extended attributes, online fsck,
// concurrent mounters, symlinks, quotas, and 64-bit file sizes are out of
// scope; see the module's SPEC_FULL.md for the full rationale.
package ext2

import (
	"fmt"

	"github.com/blockfs/embext2/backend"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger receives mount/unmount diagnostics and debug dumps. Callers may
// repoint it (e.g. to a test hook or a different output) before calling Mount.
var Logger = logrus.StandardLogger()

const rootInode uint32 = 2

// Context holds process-wide state for one mounted volume. It is created by
// Mount and destroyed by Unmount; every File derived from it
// borrows it and must not outlive it.
//
// Context is not safe for concurrent use: this driver runs single-threaded
// and blocking, matching spec.md §5 — there is no internal locking.
type Context struct {
	device         backend.BlockDevice
	partitionStart uint64 // sectors, relative to the device
	sb             *superblock
	sbBlock        uint32   // block number of the primary superblock
	sbCopies       []uint32 // block numbers of every superblock/descriptor-table copy
	numGroups      uint32
	readOnly       bool
	clock          Clock
	hostID         HostIdentity
}

// MountOptions customizes Mount beyond the block device itself.
type MountOptions struct {
	// PartitionStart is the sector offset of the volume within the device.
	PartitionStart uint64
	Clock          Clock
	HostIdentity   HostIdentity
}

// Mount reads and validates the superblock, derives the block group layout,
// stamps the mount-time bookkeeping fields, and marks the volume ERROR on
// disk until a matching Unmount restores CLEAN — so an abrupt termination
// is visible to a later consistency check, per spec.md §7.
func Mount(device backend.BlockDevice, opts MountOptions) (*Context, error) {
	if err := device.Init(); err != nil {
		return nil, fmt.Errorf("%w: initializing block device: %v", ErrIO, err)
	}
	volSectors, err := device.VolumeSize()
	if err != nil {
		return nil, fmt.Errorf("%w: reading volume size: %v", ErrIO, err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	hostID := opts.HostIdentity
	if hostID == nil {
		hostID = SystemIdentity{}
	}

	var sector [backend.SectorSize]byte
	if err := device.ReadSector(opts.PartitionStart+2, sector[:]); err != nil {
		return nil, fmt.Errorf("%w: reading superblock: %v", ErrIO, err)
	}
	sb, err := superblockFromBytes(sector[:])
	if err != nil {
		return nil, err
	}

	if uint64(sb.blocksCount())*uint64(sb.blockSize()) > volSectors*backend.SectorSize {
		return nil, fmt.Errorf("%w: superblock claims %d blocks of %d bytes, larger than the %d byte volume",
			ErrCorrupt, sb.blocksCount(), sb.blockSize(), volSectors*backend.SectorSize)
	}

	var sbBlock uint32 = 1
	if sb.blockSize() != 1024 {
		sbBlock = 0
	}

	numGroups := sb.blocksCount() / sb.blocksPerGroup()
	if sb.blocksCount()%sb.blocksPerGroup() != 0 {
		numGroups++
	}

	sbCopies := enumerateSuperblockCopies(sb, sbBlock, numGroups)

	ctx := &Context{
		device:         device,
		partitionStart: opts.PartitionStart,
		sb:             sb,
		sbBlock:        sbBlock,
		sbCopies:       sbCopies,
		numGroups:      numGroups,
		readOnly:       device.IsReadOnly(),
		clock:          clock,
		hostID:         hostID,
	}

	sb.setMTime(clock.Now())
	sb.setMntCount(sb.mntCount() + 1)
	switch {
	case sb.state() == sbStateError:
		Logger.WithField("volume_uuid", sb.uuid()).Warn("ext2: volume was not cleanly unmounted, consistency check recommended")
	case sb.maxMntCount() != 0 && sb.mntCount() > sb.maxMntCount():
		Logger.WithField("volume_uuid", sb.uuid()).Warn("ext2: mount count exceeds maximum, routine maintenance recommended")
	}
	sb.setState(sbStateError)

	if !ctx.readOnly {
		if err := ctx.flushSuperblock(); err != nil {
			return nil, err
		}
	}
	DebugDumpSuperblock(sb, nil)

	return ctx, nil
}

// Unmount restores the CLEAN state flag and flushes every superblock copy.
func (ctx *Context) Unmount() error {
	if ctx.readOnly {
		return nil
	}
	ctx.sb.setState(sbStateClean)
	if err := ctx.flushSuperblock(); err != nil {
		return err
	}
	DebugDumpSuperblock(ctx.sb, nil)
	return nil
}

// UUID returns the volume's identifier, parsed from the superblock.
func (ctx *Context) UUID() uuid.UUID { return ctx.sb.uuid() }

func (ctx *Context) blockSize() uint32     { return ctx.sb.blockSize() }
func (ctx *Context) sectorsPerBlock() uint32 { return ctx.blockSize() / backend.SectorSize }

// blockToSector converts a filesystem block number and a byte offset within
// that block into an absolute device sector number and the byte offset
// within that sector.
func (ctx *Context) blockToSector(block uint32, offsetInBlock uint32) (sector uint64, offsetInSector uint32) {
	sector = ctx.partitionStart + uint64(block)*uint64(ctx.sectorsPerBlock()) + uint64(offsetInBlock/backend.SectorSize)
	offsetInSector = offsetInBlock % backend.SectorSize
	return
}

func (ctx *Context) readSector(lba uint64, buf []byte) error {
	if err := ctx.device.ReadSector(lba, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (ctx *Context) writeSector(lba uint64, buf []byte) error {
	if ctx.readOnly {
		return ErrReadOnly
	}
	if err := ctx.device.WriteSector(lba, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// isPowerOf reports whether x is a pure power of base (base^k for some k>=0).
func isPowerOf(x, base uint32) bool {
	if x == 0 {
		return false
	}
	for x%base == 0 {
		x /= base
	}
	return x == 1
}

// enumerateSuperblockCopies lists the absolute block numbers (group *
// blocks-per-group + sbBlock) where a superblock (and the descriptor table
// that immediately follows it) is mirrored. Sparse layout applies only to
// revision-1 filesystems with the sparse-superblock RO-compat bit set.
func enumerateSuperblockCopies(sb *superblock, sbBlock uint32, numGroups uint32) []uint32 {
	sparse := sb.sparseSuperEnabled()
	copies := make([]uint32, 0, numGroups)
	for g := uint32(0); g < numGroups; g++ {
		if sparse {
			if g != 0 && g != 1 && !isPowerOf(g, 3) && !isPowerOf(g, 5) && !isPowerOf(g, 7) {
				continue
			}
		}
		copies = append(copies, g*sb.blocksPerGroup()+sbBlock)
	}
	return copies
}

// flushSuperblock writes the current in-memory superblock to every mirrored
// location, rewriting the self-identifying block-group-number field to
// point at the owning copy before each write, per spec.md §4.1.
func (ctx *Context) flushSuperblock() error {
	for _, copyBlock := range ctx.sbCopies {
		var sector [backend.SectorSize]byte
		ctx.sb.setBlockGroupNr(uint16(copyBlock))
		copy(sector[:], ctx.sb.toBytes())
		// Block 0 is a copy location only when blocks are larger than
		// 1 KiB; the primary superblock then sits 1024 bytes into it,
		// the sector Mount reads.
		var offsetInBlock uint32
		if copyBlock == 0 {
			offsetInBlock = 1024
		}
		lba, _ := ctx.blockToSector(copyBlock, offsetInBlock)
		if err := ctx.writeSector(lba, sector[:]); err != nil {
			return err
		}
	}
	return nil
}

// readGroupDescriptor loads the descriptor for group g from the primary
// (first) copy of the descriptor table, per spec.md §4.2.
func (ctx *Context) readGroupDescriptor(g uint32) (*groupDescriptor, error) {
	if g >= ctx.numGroups {
		return nil, fmt.Errorf("%w: block group %d out of range (have %d)", ErrCorrupt, g, ctx.numGroups)
	}
	tableStart := ctx.sbBlock + 1
	perSector := backend.SectorSize / groupDescriptorSize
	lba, _ := ctx.blockToSector(tableStart, (g/uint32(perSector))*backend.SectorSize)

	var sector [backend.SectorSize]byte
	if err := ctx.readSector(lba, sector[:]); err != nil {
		return nil, err
	}
	idx := g % uint32(perSector)
	return groupDescriptorFromBytes(sector[idx*groupDescriptorSize:]), nil
}

// writeGroupDescriptor mirrors the descriptor for group g into every
// superblock copy's descriptor table, per spec.md §4.2.
func (ctx *Context) writeGroupDescriptor(g uint32, gd *groupDescriptor) error {
	if g >= ctx.numGroups {
		return fmt.Errorf("%w: block group %d out of range (have %d)", ErrCorrupt, g, ctx.numGroups)
	}
	perSector := backend.SectorSize / groupDescriptorSize
	idx := g % uint32(perSector)

	for _, copyBlock := range ctx.sbCopies {
		tableStart := copyBlock + 1
		lba, _ := ctx.blockToSector(tableStart, (g/uint32(perSector))*backend.SectorSize)

		var sector [backend.SectorSize]byte
		if err := ctx.readSector(lba, sector[:]); err != nil {
			return err
		}
		copy(sector[idx*groupDescriptorSize:(idx+1)*groupDescriptorSize], gd.toBytes())
		if err := ctx.writeSector(lba, sector[:]); err != nil {
			return err
		}
	}
	DebugDumpGroup(g, gd)
	return nil
}
