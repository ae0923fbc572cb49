package optimize

import (
	"errors"
	"fmt"
)

// ErrOptimizationInProgress rejects a run while another run for the same
// client type is still in flight.
var ErrOptimizationInProgress = errors.New("optimization already in progress")

// ConcurrentOptimizationError carries the client type whose run was
// rejected. Callers treat it as a no-op rather than a failure.
type ConcurrentOptimizationError struct {
	ClientType string
}

func (e *ConcurrentOptimizationError) Error() string {
	return fmt.Sprintf("optimization already in progress for client type %q", e.ClientType)
}

func (e *ConcurrentOptimizationError) Is(target error) bool {
	return target == ErrOptimizationInProgress
}
