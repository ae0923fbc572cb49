package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by registry operations.
var (
	// ErrEndpointNotFound indicates the named endpoint does not exist
	// under the given client type.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrEndpointExists indicates an endpoint with the same name is
	// already registered under the client type.
	ErrEndpointExists = errors.New("endpoint already exists")

	// ErrUnknownClientType indicates a client type outside the
	// supported set (claude, gemini, codex).
	ErrUnknownClientType = errors.New("unknown client type")
)

// NotFoundError wraps ErrEndpointNotFound with the lookup key.
type NotFoundError struct {
	ClientType string
	Name       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("endpoint %q not found for client type %q", e.Name, e.ClientType)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEndpointNotFound
}

// ExistsError wraps ErrEndpointExists with the conflicting key.
type ExistsError struct {
	ClientType string
	Name       string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("endpoint %q already exists for client type %q", e.Name, e.ClientType)
}

func (e *ExistsError) Unwrap() error {
	return ErrEndpointExists
}
