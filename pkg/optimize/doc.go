// Package optimize probes every endpoint of a client type in one
// concurrent batch and turns the results into registry actions: a
// recovered endpoint the optimizer previously turned off is re-enabled,
// an endpoint failing authentication is disabled, and the fastest
// successful endpoint is promoted to current. Runs never overlap per
// client type.
package optimize
