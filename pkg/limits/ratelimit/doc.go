// Package ratelimit provides per-endpoint request rate limiting.
//
// The limiter is a narrow collaborator of the selector: Allow(endpoint)
// answers whether one more request may be routed there right now. Each
// endpoint carries an independent token bucket so a throttled upstream
// never affects its siblings.
package ratelimit
