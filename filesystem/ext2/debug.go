package ext2

import (
	"fmt"

	"github.com/blockfs/embext2/util"
	"github.com/sirupsen/logrus"
)

// String renders an inode's interesting fields for logging; it never
// dumps the raw block pointer array, since DebugDumpInode below does that
// in hex.
func (i *inode) String() string {
	return fmt.Sprintf("inode %d: mode=0%o size=%d links=%d blocks=%d",
		i.number, i.mode(), i.size(), i.linksCount(), i.blocks())
}

// DebugDumpInode logs an inode's raw bytes at debug level, in the same
// xxd-style layout util.DumpByteSlice produces for the rest of the pack's
// block-oriented debugging helpers. It is a no-op unless the logger's level
// is at or below Debug, since formatting a full inode record on every call
// would otherwise cost real time on a resource-constrained host.
func DebugDumpInode(in *inode) {
	if !Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	Logger.WithField("inode", in.number).Debug("\n" + util.DumpByteSlice(in.raw, 16, true, true, false, nil))
}

// DebugDumpGroup logs a block group descriptor's raw bytes at debug level.
func DebugDumpGroup(group uint32, gd *groupDescriptor) {
	if !Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	Logger.WithField("group", group).Debug("\n" + util.DumpByteSlice(gd.raw[:], 8, true, true, false, nil))
}

// DebugDumpSuperblock logs the superblock's raw bytes at debug level,
// diffing against a previously captured copy when prev is non-nil so only
// the fields a mount/flush cycle actually touched stand out.
func DebugDumpSuperblock(sb *superblock, prev *superblock) {
	if !Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	if prev == nil {
		Logger.Debug("\n" + util.DumpByteSlice(sb.raw[:], 16, true, true, false, nil))
		return
	}
	changed, out := util.DumpByteSlicesWithDiffs(prev.raw[:], sb.raw[:], 16, true, true, false)
	if changed {
		Logger.Debug("\n" + out)
	}
}
