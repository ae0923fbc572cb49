package health

import (
	"errors"
	"fmt"
	"time"
)

// Probe failure kinds. Auth failures are the only kind that drives
// automatic endpoint disabling; unsupported probes deliberately do not.
const (
	KindTimeout     = "timeout"
	KindTransport   = "transport"
	KindAuth        = "auth"
	KindUnsupported = "unsupported"
	KindHTTPStatus  = "http_status"
)

// Sentinel errors for probe failure classification.
var (
	// ErrProbeTimeout indicates the probe exceeded its deadline.
	ErrProbeTimeout = errors.New("probe timed out")

	// ErrProbeTransport indicates a network-level failure reaching
	// the upstream.
	ErrProbeTransport = errors.New("probe transport error")

	// ErrProbeAuth indicates the upstream rejected the credentials.
	ErrProbeAuth = errors.New("probe authentication rejected")

	// ErrProbeUnsupported indicates the upstream does not implement
	// the lightweight probe call. Such endpoints may still serve real
	// traffic correctly, so this is never treated as unhealthy.
	ErrProbeUnsupported = errors.New("probe not supported by endpoint")
)

// ProbeError describes a failed probe with enough detail for the
// optimizer's decision policy and the console's check results.
type ProbeError struct {
	// Endpoint is the probed endpoint name.
	Endpoint string

	// Kind is one of the Kind* constants.
	Kind string

	// StatusCode is the HTTP status, 0 for network-level failures.
	StatusCode int

	// Message is the upstream or transport error text.
	Message string

	// Timeout is the probe deadline, set for timeout failures.
	Timeout time.Duration

	// Cause is the underlying error, if any.
	Cause error
}

func (e *ProbeError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("endpoint %q probe timed out after %s", e.Endpoint, e.Timeout)
	case KindAuth:
		return fmt.Sprintf("endpoint %q probe rejected credentials (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	case KindUnsupported:
		return fmt.Sprintf("endpoint %q does not support the probe call (status %d)", e.Endpoint, e.StatusCode)
	case KindHTTPStatus:
		return fmt.Sprintf("endpoint %q probe failed with status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("endpoint %q probe failed: %s", e.Endpoint, e.Message)
	}
}

// Is maps each probe kind onto its sentinel so callers can use errors.Is.
func (e *ProbeError) Is(target error) bool {
	switch target {
	case ErrProbeTimeout:
		return e.Kind == KindTimeout
	case ErrProbeTransport:
		return e.Kind == KindTransport
	case ErrProbeAuth:
		return e.Kind == KindAuth
	case ErrProbeUnsupported:
		return e.Kind == KindUnsupported
	}
	return false
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// IsAuthError reports whether err carries an auth-rejection signature.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrProbeAuth)
}

// IsUnsupported reports whether err indicates the endpoint does not
// implement the probe call.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrProbeUnsupported)
}
