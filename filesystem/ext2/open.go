package ext2

import (
	"errors"
	"fmt"
	"os"

	"github.com/blockfs/embext2/filesystem"
)

// Type satisfies filesystem.FileSystem.
func (ctx *Context) Type() filesystem.Type { return filesystem.TypeExt2 }

// OpenFile satisfies filesystem.FileSystem. flag is the bitwise-or of the
// O* constants in this package (ORdOnly, OWrOnly, OCreat, OExcl, OTrunc,
// OAppend); the internal-open bit is never set by callers reaching this
// entry point. perm is only consulted when flag includes OCreat and the
// path does not already exist.
func (ctx *Context) OpenFile(pathname string, flag int, perm os.FileMode) (filesystem.File, error) {
	ino, ftype, err := ctx.resolvePath(pathname)
	switch {
	case err == nil:
		if flag&(OCreat|OExcl) == OCreat|OExcl {
			return nil, ErrExist
		}
		if ftype == ftDirectory {
			return nil, ErrIsDir
		}
		return ctx.openInode(ino, flag)

	case errors.Is(err, ErrNotFound):
		if flag&OCreat == 0 {
			return nil, ErrNotFound
		}
		newIno, err := ctx.createFile(pathname, uint16(perm))
		if err != nil {
			return nil, err
		}
		return ctx.openInode(newIno, flag)

	default:
		return nil, err
	}
}

// createFile allocates a new inode and wires a directory entry for it into
// its parent, populating the inode's owner, mode, and timestamps the way
// the embedded source's open()-with-O_CREAT path does. mode carries the
// caller-requested permission bits (masked to 0777); the file-type bits are
// always ModeRegular, matching the C source's "regular file | given mode".
func (ctx *Context) createFile(pathname string, mode uint16) (uint32, error) {
	if ctx.readOnly {
		return 0, ErrReadOnly
	}
	parentIno, leaf, err := ctx.resolveParent(pathname)
	if err != nil {
		return 0, err
	}
	parentIn, err := ctx.readInode(parentIno)
	if err != nil {
		return 0, err
	}
	if _, _, err := ctx.lookupInDirectory(parentIn, leaf); err == nil {
		return 0, ErrExist
	}

	newIno, err := ctx.allocateInode()
	if err != nil {
		return 0, err
	}

	now := ctx.clock.Now()
	in := newInode(newIno, ctx.sb.inodeSize())
	in.setMode(ModeRegular | (mode & 0777))
	in.setUID(ctx.hostID.OwnerUID())
	in.setGID(ctx.hostID.OwnerGID())
	in.setATime(now)
	in.setCTime(now)
	in.setMTime(now)
	in.setLinksCount(1)
	if err := ctx.writeInode(in); err != nil {
		return 0, err
	}

	if err := ctx.appendToDirectory(parentIn, leaf, newIno, ftRegular); err != nil {
		return 0, err
	}
	parentIn.setMTime(now)
	if err := ctx.writeInode(parentIn); err != nil {
		return 0, err
	}

	return newIno, nil
}

// ReadDir satisfies filesystem.FileSystem.
func (ctx *Context) ReadDir(pathname string) ([]filesystem.DirEntry, error) {
	ino, ftype, err := ctx.resolvePath(pathname)
	if err != nil {
		return nil, err
	}
	if ftype != ftDirectory {
		return nil, fmt.Errorf("%w: %q is not a directory", ErrNotFound, pathname)
	}
	dirIn, err := ctx.readInode(ino)
	if err != nil {
		return nil, err
	}
	raw, err := ctx.readDirectory(dirIn)
	if err != nil {
		return nil, err
	}

	out := make([]filesystem.DirEntry, 0, len(raw))
	for _, e := range raw {
		if e.name == "." || e.name == ".." {
			continue
		}
		out = append(out, filesystem.DirEntry{
			Name:  e.name,
			Inode: e.inode,
			IsDir: e.fileType == ftDirectory,
		})
	}
	return out, nil
}
