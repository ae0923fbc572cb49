// Package routing selects an upstream endpoint for each inbound request.
//
// Selection is a filter pipeline followed by a ranking step. Filters
// remove endpoints that are disabled, reject the requested model, have
// exhausted their quota, or are currently rate limited. Session affinity
// can then short-circuit ranking for a pinned session, provided the
// pinned endpoint survived every filter. The remaining candidates are
// ranked by health class and the configured balance strategy (fastest,
// weighted, or round robin), with priority, cost, and registry order as
// tie-breaks.
//
// The selector also owns the per-client-type "current endpoint" cell,
// written on every selection and by the optimizer when it promotes the
// best-probing endpoint.
package routing
