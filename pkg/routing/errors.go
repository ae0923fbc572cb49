package routing

import (
	"errors"
	"fmt"
)

// Routing errors checkable with errors.Is().
var (
	// ErrNoEligibleEndpoint is returned when filtering leaves no
	// candidate for a client type.
	ErrNoEligibleEndpoint = errors.New("no eligible endpoint")

	// ErrUnknownStrategy is returned for an unrecognized balance
	// strategy name.
	ErrUnknownStrategy = errors.New("unknown balance strategy")
)

// NoEligibleEndpointError reports why selection found no candidate. The
// proxy layer must surface this as a routing failure, never silently
// fall back to a disabled or ineligible endpoint.
type NoEligibleEndpointError struct {
	// ClientType is the requested client family.
	ClientType string

	// Model is the requested model, empty if unconstrained.
	Model string

	// Reason names the filter stage that emptied the candidate set.
	Reason string
}

func (e *NoEligibleEndpointError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("no eligible endpoint for client type %q and model %q: %s",
			e.ClientType, e.Model, e.Reason)
	}
	return fmt.Sprintf("no eligible endpoint for client type %q: %s", e.ClientType, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *NoEligibleEndpointError) Is(target error) bool {
	return target == ErrNoEligibleEndpoint
}
