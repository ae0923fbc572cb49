package health

import "time"

// Status is the derived health classification of an endpoint.
type Status string

// Health status values, ordered from best to worst for ranking purposes.
const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusUnknown  Status = "unknown"
	StatusError    Status = "error"
	StatusDisabled Status = "disabled"
)

// Rank returns the routing preference of a status. Lower is better.
// StatusError and StatusDisabled are not routable and rank last.
func (s Status) Rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusUnknown:
		return 2
	case StatusError:
		return 3
	default:
		return 4
	}
}

// Routable reports whether an endpoint in this status may receive traffic.
func (s Status) Routable() bool {
	return s == StatusHealthy || s == StatusWarning || s == StatusUnknown
}

// Record is a point-in-time snapshot of an endpoint's health state.
// All fields are derived from the monitor's rolling windows and probe
// results at snapshot time.
type Record struct {
	// EndpointName identifies the endpoint.
	EndpointName string `json:"endpointName"`

	// ClientType is the endpoint's client family.
	ClientType string `json:"clientType"`

	// Status is the derived health classification.
	Status Status `json:"status"`

	// ActiveCount is the number of in-flight requests routed here.
	ActiveCount int64 `json:"activeCount"`

	// SuccessRate is the percentage of successful outcomes in the
	// health window, 0 to 100. Zero when SampleSize is zero.
	SuccessRate float64 `json:"successRate"`

	// SampleSize is the number of outcomes currently in the window.
	SampleSize int64 `json:"sampleSize"`

	// AvgResponseTime is the mean request latency over the window.
	AvgResponseTime time.Duration `json:"avgResponseTime"`

	// HealthCheckLatency is the latency of the last successful probe.
	// Distinct from request-derived latency; probes take precedence
	// for the fastest strategy when present.
	HealthCheckLatency time.Duration `json:"healthCheckLatency"`

	// LastError is the most recent failure message, empty if none.
	LastError string `json:"lastError,omitempty"`

	// LastErrorTime is when LastError was recorded.
	LastErrorTime time.Time `json:"lastErrorTime,omitempty"`

	// RecentSuccess and RecentFailure count outcomes still inside the
	// trailing health window.
	RecentSuccess int64 `json:"recentSuccess"`
	RecentFailure int64 `json:"recentFailure"`

	// LastCheckAt is when the most recent probe ran, zero if never.
	LastCheckAt time.Time `json:"lastCheckAt,omitempty"`

	// LastCheckSuccess reports the most recent probe outcome.
	LastCheckSuccess bool `json:"lastCheckSuccess"`

	// LastCheckErrorMessage is the most recent probe error, if any.
	LastCheckErrorMessage string `json:"lastCheckErrorMessage,omitempty"`
}

// CheckResult is the console-facing summary of the latest probe for an
// endpoint.
type CheckResult struct {
	// LastCheckAt is when the probe ran.
	LastCheckAt time.Time `json:"lastCheckAt"`

	// Success reports whether the probe succeeded.
	Success bool `json:"success"`

	// LatencyMs is the probe round-trip time in milliseconds.
	LatencyMs int64 `json:"latencyMs"`

	// ErrorMessage is set when the probe failed.
	ErrorMessage string `json:"errorMessage,omitempty"`
}
