// Package console exposes the monitoring and operations surface the
// HTTP server serves: endpoint health, recent activity, throughput
// aggregates, probe results, optimization runs, and the live event
// feed.
package console
