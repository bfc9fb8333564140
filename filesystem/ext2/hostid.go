package ext2

import "os"

// HostIdentity supplies the owner/group stamped onto newly created inodes,
// matching spec.md §6's host identity contract.
type HostIdentity interface {
	OwnerUID() uint16
	OwnerGID() uint16
}

// SystemIdentity reads the calling process's real uid/gid, the same way the
// embedded source calls getuid()/getgid() from ext2_open.
type SystemIdentity struct{}

func (SystemIdentity) OwnerUID() uint16 { return uint16(os.Getuid()) }
func (SystemIdentity) OwnerGID() uint16 { return uint16(os.Getgid()) }

// FixedIdentity always returns the same uid/gid; useful for tests and for
// hosts where os.Getuid()/os.Getgid() are not meaningful (no real OS users).
type FixedIdentity struct {
	UID uint16
	GID uint16
}

func (f FixedIdentity) OwnerUID() uint16 { return f.UID }
func (f FixedIdentity) OwnerGID() uint16 { return f.GID }
