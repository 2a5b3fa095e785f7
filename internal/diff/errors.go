package diff

import (
	"errors"
	"fmt"

	"github.com/roach88/snc/internal/ir"
)

// Side identifies which generation of a diff an error refers to.
type Side string

const (
	// SideOld is the persisted generation. A collision here signals
	// corrupted persisted state.
	SideOld Side = "old"

	// SideNew is the freshly parsed generation. A collision here is a
	// naming collision in the document.
	SideNew Side = "new"
)

// ErrCodeDuplicateIdentity is the stable code reported for identity collisions.
const ErrCodeDuplicateIdentity = "DUPLICATE_IDENTITY"

// DuplicateIdentityError reports the same identity key appearing twice in
// one token generation. It is fatal for the diff call.
type DuplicateIdentityError struct {
	Side Side
	Key  ir.IdentityKey
}

// Error implements the error interface.
func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("%s: identity %s appears more than once in %s generation",
		ErrCodeDuplicateIdentity, e.Key, e.Side)
}

// IsDuplicateIdentity returns true if err is or wraps a DuplicateIdentityError.
func IsDuplicateIdentity(err error) bool {
	var de *DuplicateIdentityError
	return errors.As(err, &de)
}
