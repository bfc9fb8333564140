package ext2

import (
	"testing"

	"github.com/go-test/deep"
)

func TestGroupDescriptorToBytesRoundTrip(t *testing.T) {
	deep.CompareUnexportedFields = true
	gd := &groupDescriptor{}
	setGDPointers(gd, 3, 4, 5)
	gd.setFreeBlocksCount(100)
	gd.setFreeInodesCount(20)
	gd.setUsedDirsCount(2)

	reparsed := groupDescriptorFromBytes(gd.toBytes())
	if diff := deep.Equal(gd, reparsed); diff != nil {
		t.Errorf("groupDescriptorFromBytes(toBytes()) diverged from the original: %v", diff)
	}
}

func TestGroupDescriptorEqual(t *testing.T) {
	a := &groupDescriptor{}
	setGDPointers(a, 3, 4, 5)
	b := &groupDescriptor{}
	setGDPointers(b, 3, 4, 5)
	if !a.equal(b) {
		t.Error("identical descriptors should compare equal")
	}
	b.setFreeBlocksCount(1)
	if a.equal(b) {
		t.Error("a changed counter should make the descriptors unequal")
	}
}

func TestGroupDescriptorFreeCounterMutators(t *testing.T) {
	gd := &groupDescriptor{}
	gd.setFreeBlocksCount(10)
	gd.setFreeBlocksCount(gd.freeBlocksCount() - 1)
	if gd.freeBlocksCount() != 9 {
		t.Errorf("freeBlocksCount after decrement = %d, want 9", gd.freeBlocksCount())
	}

	gd.setFreeInodesCount(5)
	gd.setFreeInodesCount(gd.freeInodesCount() + 1)
	if gd.freeInodesCount() != 6 {
		t.Errorf("freeInodesCount after increment = %d, want 6", gd.freeInodesCount())
	}
}
