package ext2

import "github.com/blockfs/embext2/util/timestamp"

// Clock stamps inode times. It is the seam between the filesystem engine and
// the host's notion of "now", matching spec.md §6's clock contract: a single
// 32-bit seconds-since-epoch reading.
type Clock interface {
	Now() uint32
}

// SystemClock reads the host's wall clock, honoring SOURCE_DATE_EPOCH for
// reproducible mounts the same way util/timestamp.GetTime does.
type SystemClock struct{}

func (SystemClock) Now() uint32 {
	return uint32(timestamp.GetTime().Unix())
}

// FixedClock always returns the same value; useful for deterministic tests.
type FixedClock uint32

func (c FixedClock) Now() uint32 { return uint32(c) }
