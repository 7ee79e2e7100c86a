package lock

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Identity Provider
// --------------------------------------------------------------------------

// IIdentity supplies the two sources of uniqueness the lock protocol relies
// on: a stable owner name for this client instance and fresh record version
// numbers for every successful write. Implementations must produce version
// numbers that are globally unique with overwhelming probability (a random
// 128-bit identifier is sufficient). Tests inject deterministic
// implementations.
type IIdentity interface {
	// OwnerName returns the stable identifier of this client instance.
	OwnerName() string

	// NewVersion returns a fresh, globally unique record version number.
	NewVersion() string
}

type identityImpl struct {
	owner string
}

// NewHostIdentity creates the default identity provider: the owner name is
// derived from the local hostname plus a random UUID, so two clients on the
// same host never collide.
func NewHostIdentity() IIdentity {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return &identityImpl{
		owner: fmt.Sprintf("%s#%s", hostname, uuid.NewString()),
	}
}

// NewStaticIdentity creates an identity provider with a caller-chosen owner
// name and random version numbers. Used by the CLI so that lock ownership is
// traceable to a human-readable name.
func NewStaticIdentity(owner string) IIdentity {
	return &identityImpl{owner: owner}
}

func (i *identityImpl) OwnerName() string {
	return i.owner
}

func (i *identityImpl) NewVersion() string {
	return uuid.NewString()
}
