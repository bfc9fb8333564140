package ext2

import (
	"testing"

	"github.com/go-test/deep"
)

func TestInodeToBytesRoundTrip(t *testing.T) {
	deep.CompareUnexportedFields = true
	in := newInode(7, inodeSizeMin)
	in.setMode(ModeRegular | 0644)
	in.setUID(1000)
	in.setGID(1000)
	in.setSize(4096)
	in.setLinksCount(1)
	in.setBlocks(8)
	in.setBlock(0, 50)
	in.setBlock(singleIndirectSlot, 51)

	reparsed := inodeFromBytes(in.number, in.toBytes())
	if diff := deep.Equal(in, reparsed); diff != nil {
		t.Errorf("inodeFromBytes(toBytes()) diverged from the original: %v", diff)
	}
}

func TestInodeFileTypeAndIsDir(t *testing.T) {
	file := newInode(1, inodeSizeMin)
	file.setMode(ModeRegular | 0644)
	if file.fileType() != ModeRegular || file.isDir() {
		t.Error("a regular-file inode should report fileType==ModeRegular and isDir()==false")
	}

	dir := newInode(2, inodeSizeMin)
	dir.setMode(ModeDirectory | 0755)
	if dir.fileType() != ModeDirectory || !dir.isDir() {
		t.Error("a directory inode should report fileType==ModeDirectory and isDir()==true")
	}
}

func TestInodeClearBlocksZeroesAllFifteenSlots(t *testing.T) {
	in := newInode(3, inodeSizeMin)
	for idx := 0; idx < numBlockPointers; idx++ {
		in.setBlock(idx, uint32(idx+1))
	}
	in.clearBlocks()
	for idx := 0; idx < numBlockPointers; idx++ {
		if in.block(idx) != 0 {
			t.Errorf("block(%d) after clearBlocks = %d, want 0", idx, in.block(idx))
		}
	}
}

func TestInodeFromBytesPreservesTrailingBytesPastClassicFields(t *testing.T) {
	// A larger-than-128-byte inode record carries extra fields this driver
	// never interprets; inodeFromBytes/toBytes must still round trip them
	// byte-for-byte rather than truncating to the classic 128-byte layout.
	raw := make([]byte, 256)
	raw[200] = 0xAB
	in := inodeFromBytes(42, raw)
	if len(in.toBytes()) != 256 {
		t.Fatalf("toBytes() length = %d, want 256", len(in.toBytes()))
	}
	if in.toBytes()[200] != 0xAB {
		t.Errorf("byte 200 = %#x, want 0xAB to have been preserved", in.toBytes()[200])
	}
}
