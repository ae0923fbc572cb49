// Package quota enforces per-endpoint token budgets with scheduled
// resets.
//
// Each quota-limited endpoint gets a counter for the current cycle.
// Counters are written through a storage backend so restarts do not
// refund consumed quota, and reset on cron schedules (daily, weekly on
// Monday, monthly on the first) with a lazy rollover fallback for missed
// ticks. The selector asks Exceeded before routing to an endpoint.
package quota
