package ext2

import (
	"fmt"
	"strings"
)

const (
	maxPathLen    = 4096
	maxPathLevels = 64
)

// resolvePath walks pathname component by component from the root inode,
// the same linear per-level directory scan the embedded source's
// lookup_path performs. It returns the inode number and type byte of the
// final component.
func (ctx *Context) resolvePath(pathname string) (uint32, uint8, error) {
	if len(pathname) == 0 || pathname[0] != '/' {
		return 0, 0, fmt.Errorf("%w: path must be absolute: %q", ErrInvalidArg, pathname)
	}
	if len(pathname) > maxPathLen {
		return 0, 0, fmt.Errorf("%w: path too long", ErrInvalidArg)
	}

	parts := strings.Split(pathname, "/")
	current := rootInode
	var currentType uint8 = ftDirectory

	depth := 0
	for _, part := range parts {
		if part == "" {
			continue
		}
		depth++
		if depth > maxPathLevels {
			return 0, 0, fmt.Errorf("%w: path has too many components", ErrInvalidArg)
		}
		if currentType != ftDirectory {
			return 0, 0, fmt.Errorf("%w: %q is not a directory", ErrNotFound, part)
		}

		dirIn, err := ctx.readInode(current)
		if err != nil {
			return 0, 0, err
		}
		ino, ftype, err := ctx.lookupInDirectory(dirIn, part)
		if err != nil {
			return 0, 0, err
		}
		current = ino
		currentType = ftype
	}
	return current, currentType, nil
}

// resolveParent splits pathname into its containing directory's inode and
// the final path component's name, without requiring the final component
// to already exist — used by create.
func (ctx *Context) resolveParent(pathname string) (parentIno uint32, leaf string, err error) {
	if len(pathname) == 0 || pathname[0] != '/' {
		return 0, "", fmt.Errorf("%w: path must be absolute: %q", ErrInvalidArg, pathname)
	}
	idx := strings.LastIndexByte(pathname, '/')
	dir := pathname[:idx]
	leaf = pathname[idx+1:]
	if leaf == "" {
		return 0, "", fmt.Errorf("%w: path has no final component: %q", ErrInvalidArg, pathname)
	}
	if dir == "" {
		return rootInode, leaf, nil
	}
	ino, ftype, err := ctx.resolvePath(dir)
	if err != nil {
		return 0, "", err
	}
	if ftype != ftDirectory {
		return 0, "", fmt.Errorf("%w: %q is not a directory", ErrNotFound, dir)
	}
	return ino, leaf, nil
}
