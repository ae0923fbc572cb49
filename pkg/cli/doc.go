// Package cli holds shared helpers for the atlas command line tool:
// typed command errors and signal-aware contexts for long-running
// commands.
package cli
