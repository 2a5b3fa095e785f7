package depgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/snc/internal/ir"
)

// ErrCodeCycleDetected is the stable code reported for dependency cycles.
const ErrCodeCycleDetected = "CYCLE_DETECTED"

// CycleDetectedError reports a dependency cycle. It is raised before any
// schedule is produced.
//
// Path starts and ends with the same key, e.g. [A, B, A] for A→B→A.
type CycleDetectedError struct {
	Path []ir.IdentityKey
}

// Error implements the error interface.
func (e *CycleDetectedError) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = k.String()
	}
	return fmt.Sprintf("%s: dependency cycle %s", ErrCodeCycleDetected, strings.Join(parts, " -> "))
}

// IsCycle returns true if err is or wraps a CycleDetectedError.
func IsCycle(err error) bool {
	var ce *CycleDetectedError
	return errors.As(err, &ce)
}
