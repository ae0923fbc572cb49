// Atlas is an adaptive endpoint health and routing engine for
// multi-upstream AI provider deployments.
//
// It tracks the health of every configured upstream endpoint, selects
// the best endpoint for each request by health class, latency,
// priority, and cost, and exposes a management console over HTTP.
//
// Usage:
//
//	# Start the engine with the default configuration file
//	atlas run
//
//	# Start with a custom configuration file
//	atlas run --config /etc/atlas/atlas.yaml
//
//	# Validate a configuration file without starting
//	atlas validate --config atlas.yaml
//
//	# Show version information
//	atlas version
package main

func main() {
	Execute()
}
