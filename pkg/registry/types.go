package registry

import (
	"path"
	"time"
)

// Client type constants. Each upstream endpoint serves exactly one client
// type, and routing never crosses client-type boundaries.
const (
	ClientClaude = "claude"
	ClientGemini = "gemini"
	ClientCodex  = "codex"
)

// ClientTypes lists all supported client types in canonical order.
var ClientTypes = []string{ClientClaude, ClientGemini, ClientCodex}

// Endpoint describes a single upstream API endpoint.
// Endpoints are identified by name, unique within their client type.
type Endpoint struct {
	// Name is the endpoint identifier, unique per client type.
	Name string `json:"name"`

	// ClientType is the client family this endpoint serves
	// (claude, gemini, codex).
	ClientType string `json:"clientType"`

	// APIUrl is the upstream base URL.
	APIUrl string `json:"apiUrl"`

	// APIKey is the upstream credential. Never serialized.
	APIKey string `json:"-"`

	// Transformer is the wire protocol spoken by the upstream
	// (anthropic, gemini, openai).
	Transformer string `json:"transformer"`

	// Model is an optional model override forced onto requests.
	Model string `json:"model,omitempty"`

	// Enabled controls whether the endpoint participates in routing.
	Enabled bool `json:"enabled"`

	// Priority orders endpoints within a health class. Lower is preferred.
	Priority int `json:"priority"`

	// Tags are free-form labels for operator bookkeeping.
	Tags []string `json:"tags,omitempty"`

	// ModelPatterns restricts this endpoint to requests whose model
	// matches one of the glob patterns. Empty means all models.
	ModelPatterns []string `json:"modelPatterns,omitempty"`

	// CostPerInputToken is the upstream price per million input tokens.
	CostPerInputToken float64 `json:"costPerInputToken,omitempty"`

	// CostPerOutputToken is the upstream price per million output tokens.
	CostPerOutputToken float64 `json:"costPerOutputToken,omitempty"`

	// QuotaLimit is the token budget per reset cycle (0 for unlimited).
	QuotaLimit int64 `json:"quotaLimit,omitempty"`

	// QuotaResetCycle is the quota reset schedule
	// (none, daily, weekly, monthly).
	QuotaResetCycle string `json:"quotaResetCycle,omitempty"`

	// AddedAt records when the endpoint was registered.
	AddedAt time.Time `json:"addedAt"`
}

// MatchesModel reports whether this endpoint accepts the given model.
// An endpoint with no patterns accepts every model. A malformed pattern
// never matches; patterns are validated at configuration load time.
func (e *Endpoint) MatchesModel(model string) bool {
	if len(e.ModelPatterns) == 0 {
		return true
	}
	for _, pattern := range e.ModelPatterns {
		if ok, err := path.Match(pattern, model); err == nil && ok {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the endpoint so callers can hand out
// snapshots without exposing internal state to mutation.
func (e *Endpoint) Clone() *Endpoint {
	cp := *e
	if e.Tags != nil {
		cp.Tags = append([]string(nil), e.Tags...)
	}
	if e.ModelPatterns != nil {
		cp.ModelPatterns = append([]string(nil), e.ModelPatterns...)
	}
	return &cp
}
