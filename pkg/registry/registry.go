package registry

import (
	"log/slog"
	"sync"
	"time"

	"atlas-gw/atlas/pkg/config"
)

// Registry holds the set of configured endpoints, grouped by client type.
// Within each client type, endpoints keep a stable operator-defined order
// that routing uses as the final tie-breaker.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	groups map[string][]*Endpoint
	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	groups := make(map[string][]*Endpoint, len(ClientTypes))
	for _, ct := range ClientTypes {
		groups[ct] = nil
	}
	return &Registry{
		groups: groups,
		logger: logger,
	}
}

// NewFromConfig creates a registry populated from endpoint configuration.
// Endpoints appear in file order, which becomes the registry order.
func NewFromConfig(cfgs []config.EndpointConfig, logger *slog.Logger) (*Registry, error) {
	r := New(logger)
	for i := range cfgs {
		if err := r.Add(endpointFromConfig(&cfgs[i])); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// endpointFromConfig converts a configuration entry into an Endpoint.
func endpointFromConfig(cfg *config.EndpointConfig) *Endpoint {
	return &Endpoint{
		Name:               cfg.Name,
		ClientType:         cfg.ClientType,
		APIUrl:             cfg.APIUrl,
		APIKey:             cfg.APIKey,
		Transformer:        cfg.Transformer,
		Model:              cfg.Model,
		Enabled:            cfg.IsEnabled(),
		Priority:           cfg.Priority,
		Tags:               append([]string(nil), cfg.Tags...),
		ModelPatterns:      append([]string(nil), cfg.ModelPatterns...),
		CostPerInputToken:  cfg.CostPerInputToken,
		CostPerOutputToken: cfg.CostPerOutputToken,
		QuotaLimit:         cfg.QuotaLimit,
		QuotaResetCycle:    cfg.QuotaResetCycle,
		AddedAt:            time.Now(),
	}
}

// Add registers a new endpoint at the end of its client-type group.
// Returns ExistsError if the name is taken within the client type.
func (r *Registry) Add(ep *Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[ep.ClientType]; !ok {
		return ErrUnknownClientType
	}
	if r.indexOfLocked(ep.ClientType, ep.Name) >= 0 {
		return &ExistsError{ClientType: ep.ClientType, Name: ep.Name}
	}
	if ep.AddedAt.IsZero() {
		ep.AddedAt = time.Now()
	}
	r.groups[ep.ClientType] = append(r.groups[ep.ClientType], ep)

	r.logger.Info("endpoint registered",
		"endpoint", ep.Name,
		"client_type", ep.ClientType,
		"url", ep.APIUrl,
		"enabled", ep.Enabled,
	)
	return nil
}

// Get returns a copy of the named endpoint.
func (r *Registry) Get(clientType, name string) (*Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOfLocked(clientType, name)
	if i < 0 {
		return nil, &NotFoundError{ClientType: clientType, Name: name}
	}
	return r.groups[clientType][i].Clone(), nil
}

// Update replaces the named endpoint in place, preserving its position in
// the registry order. The endpoint's name and client type are immutable;
// the replacement must carry the same key.
func (r *Registry) Update(ep *Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfLocked(ep.ClientType, ep.Name)
	if i < 0 {
		return &NotFoundError{ClientType: ep.ClientType, Name: ep.Name}
	}
	if ep.AddedAt.IsZero() {
		ep.AddedAt = r.groups[ep.ClientType][i].AddedAt
	}
	r.groups[ep.ClientType][i] = ep

	r.logger.Info("endpoint updated",
		"endpoint", ep.Name,
		"client_type", ep.ClientType,
	)
	return nil
}

// Remove deletes the named endpoint. Remaining endpoints keep their
// relative order.
func (r *Registry) Remove(clientType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfLocked(clientType, name)
	if i < 0 {
		return &NotFoundError{ClientType: clientType, Name: name}
	}
	group := r.groups[clientType]
	r.groups[clientType] = append(group[:i], group[i+1:]...)

	r.logger.Info("endpoint removed",
		"endpoint", name,
		"client_type", clientType,
	)
	return nil
}

// SetEnabled flips the enabled flag on the named endpoint.
func (r *Registry) SetEnabled(clientType, name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfLocked(clientType, name)
	if i < 0 {
		return &NotFoundError{ClientType: clientType, Name: name}
	}
	r.groups[clientType][i].Enabled = enabled

	r.logger.Info("endpoint toggled",
		"endpoint", name,
		"client_type", clientType,
		"enabled", enabled,
	)
	return nil
}

// Reorder rearranges a client-type group to match the given name order.
// Every registered endpoint of the client type must appear exactly once.
func (r *Registry) Reorder(clientType string, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[clientType]
	if !ok {
		return ErrUnknownClientType
	}
	if len(names) != len(group) {
		return &NotFoundError{ClientType: clientType, Name: "reorder list mismatch"}
	}

	reordered := make([]*Endpoint, 0, len(group))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return &ExistsError{ClientType: clientType, Name: name}
		}
		seen[name] = true

		i := r.indexOfLocked(clientType, name)
		if i < 0 {
			return &NotFoundError{ClientType: clientType, Name: name}
		}
		reordered = append(reordered, group[i])
	}
	r.groups[clientType] = reordered

	r.logger.Info("endpoints reordered",
		"client_type", clientType,
		"order", names,
	)
	return nil
}

// List returns copies of all endpoints for a client type in registry order.
func (r *Registry) List(clientType string) []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[clientType]
	out := make([]*Endpoint, 0, len(group))
	for _, ep := range group {
		out = append(out, ep.Clone())
	}
	return out
}

// ListEnabled returns copies of the enabled endpoints for a client type
// in registry order.
func (r *Registry) ListEnabled(clientType string) []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[clientType]
	out := make([]*Endpoint, 0, len(group))
	for _, ep := range group {
		if ep.Enabled {
			out = append(out, ep.Clone())
		}
	}
	return out
}

// All returns copies of every endpoint across all client types, grouped in
// canonical client-type order.
func (r *Registry) All() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Endpoint
	for _, ct := range ClientTypes {
		for _, ep := range r.groups[ct] {
			out = append(out, ep.Clone())
		}
	}
	return out
}

// Len returns the total number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, group := range r.groups {
		n += len(group)
	}
	return n
}

// ReplaceFromConfig swaps the entire endpoint set for the one described by
// the configuration. Used by hot reload. AddedAt timestamps survive for
// endpoints whose client type and name are unchanged.
func (r *Registry) ReplaceFromConfig(cfgs []config.EndpointConfig) error {
	fresh := make(map[string][]*Endpoint, len(ClientTypes))
	for _, ct := range ClientTypes {
		fresh[ct] = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range cfgs {
		ep := endpointFromConfig(&cfgs[i])
		if _, ok := fresh[ep.ClientType]; !ok {
			return ErrUnknownClientType
		}
		if j := r.indexOfLocked(ep.ClientType, ep.Name); j >= 0 {
			ep.AddedAt = r.groups[ep.ClientType][j].AddedAt
		}
		fresh[ep.ClientType] = append(fresh[ep.ClientType], ep)
	}
	r.groups = fresh

	r.logger.Info("endpoint registry reloaded", "endpoints", len(cfgs))
	return nil
}

// indexOfLocked returns the position of the named endpoint within its
// client-type group, or -1. Caller must hold the lock.
func (r *Registry) indexOfLocked(clientType, name string) int {
	for i, ep := range r.groups[clientType] {
		if ep.Name == name {
			return i
		}
	}
	return -1
}
