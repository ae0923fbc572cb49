// Package storage persists per-endpoint quota usage across restarts.
//
// Two backends are provided: an in-memory map for tests and deployments
// that tolerate counter loss, and a SQLite database (pure Go driver) for
// single-instance durability. The quota tracker writes through whichever
// backend is configured and reloads counters at startup.
package storage
