package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/registry"
)

// Result is the outcome of one probe attempt.
type Result struct {
	// Latency is the probe round-trip time, measured even on failure.
	Latency time.Duration

	// Err is nil on success, otherwise a *health.ProbeError.
	Err error
}

// Success reports whether the probe succeeded.
func (r Result) Success() bool {
	return r.Err == nil
}

// Prober performs a lightweight synthetic call against an endpoint to
// assess liveness without consuming a real client request.
type Prober interface {
	// Probe runs one check. It never panics and never returns an error
	// other than through the Result; classification errors land in
	// Result.Err as *health.ProbeError values.
	Probe(ctx context.Context, ep *registry.Endpoint) Result
}

// prober is the shared HTTP implementation. Transformer families differ
// only in how the request is authorized and which path is probed, so
// each family supplies just a probe path and a prepare hook.
type prober struct {
	client  *http.Client
	prepare func(req *http.Request, ep *registry.Endpoint)
	path    string
}

// New returns the prober for a transformer family (anthropic, gemini,
// openai). Unknown transformers fall back to the openai wire format,
// the most widely cloned of the three.
func New(transformer string, timeout time.Duration) Prober {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:      8,
			IdleConnTimeout:   90 * time.Second,
			ForceAttemptHTTP2: true,
		},
	}

	switch transformer {
	case "anthropic":
		return &prober{
			client: client,
			path:   "/v1/models",
			prepare: func(req *http.Request, ep *registry.Endpoint) {
				req.Header.Set("x-api-key", ep.APIKey)
				req.Header.Set("anthropic-version", "2023-06-01")
			},
		}
	case "gemini":
		return &prober{
			client: client,
			path:   "/v1beta/models",
			prepare: func(req *http.Request, ep *registry.Endpoint) {
				req.Header.Set("x-goog-api-key", ep.APIKey)
			},
		}
	default:
		return &prober{
			client: client,
			path:   "/v1/models",
			prepare: func(req *http.Request, ep *registry.Endpoint) {
				req.Header.Set("Authorization", "Bearer "+ep.APIKey)
			},
		}
	}
}

// Probe issues the family's models-list call. The call is free on every
// known upstream, so probing never consumes billed quota.
func (p *prober) Probe(ctx context.Context, ep *registry.Endpoint) Result {
	url := joinURL(ep.APIUrl, p.path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Err: &health.ProbeError{
			Endpoint: ep.Name,
			Kind:     health.KindTransport,
			Message:  err.Error(),
			Cause:    err,
		}}
	}
	p.prepare(req, ep)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		return Result{Latency: latency, Err: classifyTransport(ep.Name, err, p.client.Timeout)}
	}
	defer resp.Body.Close()

	// Bounded read: only needed for classifying error wording.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Latency: latency}
	}
	return Result{Latency: latency, Err: classifyStatus(ep.Name, resp.StatusCode, string(body))}
}

// classifyTransport maps a client-level failure to the probe taxonomy.
func classifyTransport(endpoint string, err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &health.ProbeError{
			Endpoint: endpoint,
			Kind:     health.KindTimeout,
			Timeout:  timeout,
			Message:  err.Error(),
			Cause:    err,
		}
	}
	return &health.ProbeError{
		Endpoint: endpoint,
		Kind:     health.KindTransport,
		Message:  err.Error(),
		Cause:    err,
	}
}

// isTimeout reports whether err carries a net-level timeout signal.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// classifyStatus maps a non-2xx probe response to the probe taxonomy.
//
// 401/403 always mean rejected credentials. 404/405/501 mean the upstream
// does not implement the models-list call, unless the body carries auth
// wording, in which case a nonstandard upstream is signaling an auth
// failure through an unusual status.
func classifyStatus(endpoint string, status int, body string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &health.ProbeError{
			Endpoint:   endpoint,
			Kind:       health.KindAuth,
			StatusCode: status,
			Message:    trimBody(body),
		}
	}

	unsupportedStatus := status == http.StatusNotFound ||
		status == http.StatusMethodNotAllowed ||
		status == http.StatusNotImplemented

	if unsupportedStatus {
		if hasAuthWording(body) {
			return &health.ProbeError{
				Endpoint:   endpoint,
				Kind:       health.KindAuth,
				StatusCode: status,
				Message:    trimBody(body),
			}
		}
		return &health.ProbeError{
			Endpoint:   endpoint,
			Kind:       health.KindUnsupported,
			StatusCode: status,
			Message:    trimBody(body),
		}
	}

	return &health.ProbeError{
		Endpoint:   endpoint,
		Kind:       health.KindHTTPStatus,
		StatusCode: status,
		Message:    trimBody(body),
	}
}

// authWords are the markers that distinguish a disguised credential
// rejection from a genuinely unimplemented probe route.
var authWords = []string{
	"api key",
	"api_key",
	"apikey",
	"unauthorized",
	"unauthenticated",
	"authentication",
	"invalid key",
	"credential",
	"permission",
	"forbidden",
}

func hasAuthWording(body string) bool {
	lower := strings.ToLower(body)
	for _, w := range authWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// trimBody shortens a response body for error messages.
func trimBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}

// joinURL appends a path to a base URL without doubling separators or
// version segments. Endpoints are often configured with a trailing /v1
// already present.
func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if i := strings.Index(path, "/models"); i > 0 {
		version := path[:i]
		if strings.HasSuffix(base, version) {
			return base + "/models"
		}
	}
	return base + path
}

// Dispatcher selects the right prober for each endpoint's transformer
// and caches one prober per family.
type Dispatcher struct {
	timeout time.Duration
	probers map[string]Prober
}

// NewDispatcher creates a dispatcher with the given per-probe timeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		timeout: timeout,
		probers: make(map[string]Prober, 3),
	}
	for _, tf := range []string{"anthropic", "gemini", "openai"} {
		d.probers[tf] = New(tf, timeout)
	}
	return d
}

// Probe runs the transformer-appropriate probe for the endpoint.
func (d *Dispatcher) Probe(ctx context.Context, ep *registry.Endpoint) Result {
	p, ok := d.probers[ep.Transformer]
	if !ok {
		p = d.probers["openai"]
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return p.Probe(ctx, ep)
}

// String describes the dispatcher for logging.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("probe dispatcher (timeout %s)", d.timeout)
}
