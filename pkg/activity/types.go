package activity

import "time"

// Phase is a request's position in its lifecycle.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseConnecting Phase = "connecting"
	PhaseSending    Phase = "sending"
	PhaseStreaming  Phase = "streaming"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// phaseRank orders phases so transitions only ever move forward. The two
// terminal phases share a rank; a finished request never changes again.
var phaseRank = map[Phase]int{
	PhaseWaiting:    0,
	PhaseConnecting: 1,
	PhaseSending:    2,
	PhaseStreaming:  3,
	PhaseCompleted:  4,
	PhaseFailed:     4,
}

// Terminal reports whether the phase ends the request lifecycle.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

// ActiveRequest is one in-flight request as shown to the console.
type ActiveRequest struct {
	RequestID      string    `json:"requestId"`
	EndpointName   string    `json:"endpointName"`
	ClientType     string    `json:"clientType"`
	Model          string    `json:"model,omitempty"`
	Phase          Phase     `json:"phase"`
	StartTime      time.Time `json:"startTime"`
	MessagePreview string    `json:"messagePreview,omitempty"`
	BytesReceived  int64     `json:"bytesReceived"`
}

// RequestRecord is a finished request kept in the recent-history ring.
type RequestRecord struct {
	RequestID      string    `json:"requestId"`
	EndpointName   string    `json:"endpointName"`
	ClientType     string    `json:"clientType"`
	Model          string    `json:"model,omitempty"`
	Phase          Phase     `json:"phase"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	DurationMs     int64     `json:"durationMs"`
	Tokens         int64     `json:"tokens"`
	BytesReceived  int64     `json:"bytesReceived"`
	MessagePreview string    `json:"messagePreview,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
}

// ThroughputStats aggregates the trailing throughput window.
type ThroughputStats struct {
	RequestsPerMin      float64 `json:"requestsPerMin"`
	TokensPerMin        float64 `json:"tokensPerMin"`
	GlobalAvgLatencyMs  float64 `json:"globalAvgLatencyMs"`
	ActiveRequestsCount int     `json:"activeRequestsCount"`
}
