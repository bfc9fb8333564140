package ext2

import (
	"testing"

	"github.com/go-test/deep"
)

func TestSuperblockFromBytesRejectsShortInput(t *testing.T) {
	if _, err := superblockFromBytes(make([]byte, 10)); err == nil {
		t.Fatal("expected an error for an input shorter than SuperblockSize")
	}
}

func TestSuperblockFromBytesRejectsBadMagic(t *testing.T) {
	raw := make([]byte, SuperblockSize)
	if _, err := superblockFromBytes(raw); err == nil {
		t.Fatal("expected an error for a zeroed (bad-magic) superblock")
	}
}

func TestSuperblockToBytesRoundTrip(t *testing.T) {
	deep.CompareUnexportedFields = true
	sb := &superblock{}
	sb.setU16(sbOffMagic, ExtSuperMagic)
	sb.setU32(sbOffBlocksCount, 4096)
	sb.setU32(sbOffInodesCount, 512)

	reparsed, err := superblockFromBytes(sb.toBytes())
	if err != nil {
		t.Fatalf("superblockFromBytes(toBytes()): %v", err)
	}
	if diff := deep.Equal(sb, reparsed); diff != nil {
		t.Errorf("superblockFromBytes(toBytes()) diverged from the original: %v", diff)
	}
}

func TestBlockSizeFromLogBlockSize(t *testing.T) {
	cases := []struct {
		log  uint32
		want uint32
	}{
		{0, 1024},
		{1, 2048},
		{2, 4096},
	}
	for _, c := range cases {
		sb := &superblock{}
		sb.setU32(sbOffLogBlockSize, c.log)
		if got := sb.blockSize(); got != c.want {
			t.Errorf("blockSize() with logBlockSize=%d = %d, want %d", c.log, got, c.want)
		}
	}
}

func TestInodeSizeRevisionRule(t *testing.T) {
	sb := &superblock{}
	sb.setU32(sbOffRevLevel, revGoodOld)
	sb.setU16(sbOffInodeSize, 256) // must be ignored for revision 0
	if got := sb.inodeSize(); got != 128 {
		t.Errorf("inodeSize() on a revision-0 filesystem = %d, want fixed 128", got)
	}

	sb.setU32(sbOffRevLevel, revDynamic)
	if got := sb.inodeSize(); got != 256 {
		t.Errorf("inodeSize() on a revision-1 filesystem = %d, want the stored 256", got)
	}
}

func TestSparseSuperEnabled(t *testing.T) {
	sb := &superblock{}
	if sb.sparseSuperEnabled() {
		t.Error("sparseSuperEnabled() on a zeroed (revision-0) superblock should be false")
	}
	sb.setU32(sbOffRevLevel, revDynamic)
	if sb.sparseSuperEnabled() {
		t.Error("sparseSuperEnabled() without the RO-compat bit set should be false")
	}
	sb.setU32(sbOffFeatureRoCompat, roCompatSparseSuper)
	if !sb.sparseSuperEnabled() {
		t.Error("sparseSuperEnabled() with revision 1 and the sparse bit set should be true")
	}
}

func TestSuperblockEqualIgnoresBlockGroupNr(t *testing.T) {
	a := &superblock{}
	a.setU16(sbOffMagic, ExtSuperMagic)
	b := &superblock{}
	b.setU16(sbOffMagic, ExtSuperMagic)
	a.setBlockGroupNr(1)
	b.setBlockGroupNr(99)
	if !a.equal(b) {
		t.Error("equal() should ignore the self-identifying block group number field")
	}

	b.setU32(sbOffBlocksCount, 1)
	if a.equal(b) {
		t.Error("equal() should notice a difference in a real field")
	}
}
