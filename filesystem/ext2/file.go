package ext2

import (
	"fmt"
	"io"
	"math"

	"github.com/blockfs/embext2/backend"
)

// Open flags, matching the subset of POSIX open(2) flags the embedded
// source interprets.
const (
	ORdOnly = 0x0000
	OWrOnly = 0x0001
	ORdWr   = 0x0002
	OCreat  = 0x0040
	OExcl   = 0x0080
	OTrunc  = 0x0200
	OAppend = 0x0400

	// internalOpen, set in openInode's flags, bypasses the is-a-directory
	// check so a directory inode can be opened as a File. The directory
	// engine does not use it: appendToDirectory and deleteFromDirectory
	// read and write directory blocks directly.
	internalOpen = 0x1000
)

// File is an open handle onto one inode's data, offering the buffered
// stream discipline spec.md §4.6 describes: one dirty sector cached at a
// time, flushed on eviction or Close, with the inode itself flushed only
// when its fields were actually touched.
type File struct {
	ctx    *Context
	in     *inode
	cursor uint64

	appendMode bool
	readOnly   bool

	buf      [backend.SectorSize]byte
	bufLBA   uint64
	bufValid bool
	bufDirty bool

	inodeDirty bool
	closed     bool
}

func (ctx *Context) openInode(ino uint32, flags int) (*File, error) {
	in, err := ctx.readInode(ino)
	if err != nil {
		return nil, err
	}
	if in.isDir() && flags&internalOpen == 0 {
		return nil, ErrIsDir
	}

	writable := flags&(OWrOnly|ORdWr) != 0
	if writable && ctx.readOnly {
		return nil, ErrReadOnly
	}

	f := &File{
		ctx:        ctx,
		in:         in,
		appendMode: flags&OAppend != 0,
		readOnly:   !writable,
	}

	if flags&OTrunc != 0 && writable {
		if err := f.truncateLocked(0); err != nil {
			return nil, err
		}
	}
	if f.appendMode {
		f.cursor = in.size()
	}
	return f, nil
}

// loadSector ensures f.buf holds lba's contents, flushing whatever was
// cached before if it belongs to a different sector.
func (f *File) loadSector(lba uint64) error {
	if f.bufValid && f.bufLBA == lba {
		return nil
	}
	if err := f.flushSector(); err != nil {
		return err
	}
	if err := f.ctx.readSector(lba, f.buf[:]); err != nil {
		return err
	}
	f.bufLBA = lba
	f.bufValid = true
	return nil
}

func (f *File) flushSector() error {
	if !f.bufValid || !f.bufDirty {
		return nil
	}
	if err := f.ctx.writeSector(f.bufLBA, f.buf[:]); err != nil {
		return err
	}
	f.bufDirty = false
	return nil
}

// Read implements io.Reader. Reads never extend the file; past end of file
// they return io.EOF once no bytes have been produced.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, ErrBadHandle
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.cursor >= f.in.size() {
		return 0, io.EOF
	}

	blockSize := uint64(f.ctx.blockSize())
	n := 0
	for n < len(p) && f.cursor < f.in.size() {
		logicalBlock := uint32(f.cursor / blockSize)
		offsetInBlock := uint32(f.cursor % blockSize)

		remaining := f.in.size() - f.cursor
		chunk := uint64(len(p) - n)
		if chunk > remaining {
			chunk = remaining
		}
		if chunk > uint64(blockSize)-uint64(offsetInBlock) {
			chunk = uint64(blockSize) - uint64(offsetInBlock)
		}

		phys, err := f.ctx.blockForOffset(f.in, logicalBlock, false, false, nil)
		if err != nil {
			return n, err
		}
		if phys == 0 {
			if n > 0 {
				f.stampATime()
			}
			return n, fmt.Errorf("%w: logical block %d of inode %d", ErrSparseHole, logicalBlock, f.in.number)
		}

		lba, sectorOff := f.ctx.blockToSector(phys, offsetInBlock)
		if err := f.loadSector(lba); err != nil {
			return n, err
		}
		avail := uint64(backend.SectorSize) - uint64(sectorOff)
		if chunk > avail {
			chunk = avail
		}
		copy(p[n:], f.buf[sectorOff:uint64(sectorOff)+chunk])
		n += int(chunk)
		f.cursor += chunk
	}
	if n > 0 {
		f.stampATime()
	}
	return n, nil
}

// stampATime records that at least one byte was copied out of the file,
// matching the embedded source's open_inode atime update rule.
func (f *File) stampATime() {
	f.in.setATime(f.ctx.clock.Now())
	f.inodeDirty = true
}

// Write implements io.Writer, extending the file (and allocating blocks, up
// through all three indirection levels as needed) past its current size.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrBadHandle
	}
	if f.readOnly {
		return 0, ErrReadOnly
	}
	if f.appendMode {
		f.cursor = f.in.size()
	}
	if len(p) == 0 {
		return 0, nil
	}

	blockSize := uint64(f.ctx.blockSize())
	n := 0
	for n < len(p) {
		logicalBlock := uint32(f.cursor / blockSize)
		offsetInBlock := uint32(f.cursor % blockSize)

		var allocCount uint32
		phys, err := f.ctx.blockForOffset(f.in, logicalBlock, true, false, &allocCount)
		if err != nil {
			return n, err
		}
		if allocCount > 0 {
			f.in.setBlocks(f.in.blocks() + allocCount*f.ctx.sectorsPerBlock())
			f.inodeDirty = true
		}

		lba, sectorOff := f.ctx.blockToSector(phys, offsetInBlock)
		if err := f.loadSector(lba); err != nil {
			return n, err
		}

		chunk := uint64(len(p) - n)
		avail := uint64(backend.SectorSize) - uint64(sectorOff)
		if chunk > avail {
			chunk = avail
		}
		copy(f.buf[sectorOff:uint64(sectorOff)+chunk], p[n:])
		f.bufDirty = true

		n += int(chunk)
		f.cursor += chunk
		if f.cursor > f.in.size() {
			f.in.setSize(f.cursor)
			f.inodeDirty = true
		}
	}

	now := f.ctx.clock.Now()
	f.in.setMTime(now)
	f.inodeDirty = true
	return n, nil
}

// FileInfo is a snapshot of an inode's metadata, returned by (*File).Stat.
type FileInfo struct {
	Size      uint64
	Mode      uint16
	IsDir     bool
	LinkCount uint16
	UID       uint16
	GID       uint16
	ATime     uint32
	MTime     uint32
	CTime     uint32
	Blocks    uint32 // 512-byte sectors allocated
	BlockSize uint32
}

// Stat copies the handle's inode fields into a FileInfo, the block size
// taken from the owning context — mirroring the embedded source's stat(),
// which does the same from the context rather than the inode record.
func (f *File) Stat() (FileInfo, error) {
	if f.closed {
		return FileInfo{}, ErrBadHandle
	}
	return FileInfo{
		Size:      f.in.size(),
		Mode:      f.in.mode(),
		IsDir:     f.in.isDir(),
		LinkCount: f.in.linksCount(),
		UID:       f.in.uid(),
		GID:       f.in.gid(),
		ATime:     f.in.atime(),
		MTime:     f.in.mtime(),
		CTime:     f.in.ctime(),
		Blocks:    f.in.blocks(),
		BlockSize: f.ctx.blockSize(),
	}, nil
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, ErrBadHandle
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(f.cursor)
	case io.SeekEnd:
		base = int64(f.in.size())
	default:
		return 0, fmt.Errorf("%w: unknown whence %d", ErrInvalidArg, whence)
	}
	if offset > 0 && base > math.MaxInt64-offset {
		return 0, ErrOverflow
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, fmt.Errorf("%w: negative resulting offset", ErrInvalidArg)
	}
	f.cursor = uint64(newPos)
	return newPos, nil
}

// Close flushes any cached dirty sector and, if any field of the inode was
// touched, writes the inode back, matching the embedded source's
// flush-on-dirty discipline rather than writing back unconditionally.
func (f *File) Close() error {
	if f.closed {
		return ErrBadHandle
	}
	f.closed = true

	if err := f.flushSector(); err != nil {
		return err
	}
	if f.inodeDirty && !f.ctx.readOnly {
		if err := f.ctx.writeInode(f.in); err != nil {
			return err
		}
	}
	return nil
}

// Truncate changes the file's size, freeing any blocks (direct or indirect)
// that fall entirely past the new size.
func (f *File) Truncate(size uint64) error {
	if f.closed {
		return ErrBadHandle
	}
	if f.readOnly {
		return ErrReadOnly
	}
	return f.truncateLocked(size)
}

func (f *File) truncateLocked(size uint64) error {
	blockSize := uint64(f.ctx.blockSize())
	oldSize := f.in.size()
	if size >= oldSize {
		f.in.setSize(size)
		f.inodeDirty = true
		return nil
	}

	fromLogicalBlock := uint32((size + blockSize - 1) / blockSize)
	freed, err := f.ctx.truncateBlocks(f.in, fromLogicalBlock, f.in.isDir())
	if err != nil {
		return err
	}
	if freed > 0 {
		dec := freed * f.ctx.sectorsPerBlock()
		if dec > f.in.blocks() {
			dec = f.in.blocks()
		}
		f.in.setBlocks(f.in.blocks() - dec)
	}

	if size%blockSize != 0 {
		logicalBlock := uint32(size / blockSize)
		phys, err := f.ctx.blockForOffset(f.in, logicalBlock, false, false, nil)
		if err != nil {
			return err
		}
		if phys != 0 {
			if err := f.zeroTail(phys, uint32(size%blockSize)); err != nil {
				return err
			}
		}
	}

	f.in.setSize(size)
	now := f.ctx.clock.Now()
	f.in.setMTime(now)
	f.inodeDirty = true
	if f.cursor > size {
		f.cursor = size
	}
	return nil
}

// zeroTail zeroes every byte of block at or past offsetInBlock, clearing
// the garbage a shrinking truncate would otherwise leave in a partially
// retained final block.
func (f *File) zeroTail(block uint32, offsetInBlock uint32) error {
	blockSize := f.ctx.blockSize()
	for off := offsetInBlock; off < blockSize; {
		lba, sectorOff := f.ctx.blockToSector(block, off)
		if err := f.loadSector(lba); err != nil {
			return err
		}
		for i := sectorOff; i < backend.SectorSize; i++ {
			f.buf[i] = 0
		}
		f.bufDirty = true
		advanced := backend.SectorSize - sectorOff
		off += advanced
	}
	return nil
}
