package ext2

import "testing"

func TestInodeString(t *testing.T) {
	in := newInode(9, inodeSizeMin)
	in.setMode(ModeRegular | 0644)
	in.setSize(123)
	in.setLinksCount(1)
	in.setBlocks(2)

	got := in.String()
	want := "inode 9: mode=0100644 size=123 links=1 blocks=2"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDebugDumpersAreNoOpsWhenDebugDisabled(t *testing.T) {
	// Logger defaults to a level above Debug; these calls must not panic or
	// touch the (possibly nil) prev argument's fields.
	DebugDumpInode(newInode(1, inodeSizeMin))
	DebugDumpGroup(0, &groupDescriptor{})
	DebugDumpSuperblock(&superblock{}, nil)
	DebugDumpSuperblock(&superblock{}, &superblock{})
}
