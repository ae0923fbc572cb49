// Package events carries request lifecycle notifications from the
// activity tracker to console consumers over per-subscriber buffered
// queues. Delivery favors liveness: a slow consumer loses intermediate
// updates but always receives request completions.
package events
