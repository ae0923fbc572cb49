// Package activity tracks in-flight requests through their lifecycle
// phases and aggregates recent history and trailing throughput for the
// console. Finished requests feed the health monitor and the quota
// tracker.
package activity
