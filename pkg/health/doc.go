// Package health tracks the live and historical health of upstream
// endpoints.
//
// Two feeds update the monitor: real traffic outcomes reported by the
// request path, and active probes run by the optimizer or on demand. Both
// land in a per-endpoint rolling window from which success rate and mean
// latency are computed. Status is derived on every read from the window,
// the error latch, and the latest probe result, so it can never go stale.
//
// The per-endpoint state is sharded so the hot path never takes a global
// lock, and the rolling windows prune expired samples lazily on access
// rather than with a sweeper goroutine.
package health
