// Package registry maintains the set of configured upstream endpoints.
//
// Endpoints are grouped by client type (claude, gemini, codex) and keep a
// stable operator-defined order within each group. That order is the final
// tie-breaker during endpoint selection, so reordering endpoints is a
// routing control, not just cosmetics.
//
// The registry supports live mutation (add, update, remove, enable,
// reorder) and wholesale replacement during configuration hot reload. All
// reads return copies so callers never observe concurrent mutation.
package registry
