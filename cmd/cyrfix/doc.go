// Package main hosts the cyrfix CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the repair scan itself, configuration
// scaffolding, and repair-ledger inspection. It centralizes configuration
// resolution, logger setup, and console rendering so subcommands can focus
// on user experience instead of wiring.
//
// Keep this package lean: the detection and repair logic lives in the
// internal packages and is surfaced here through flags and output only.
package main
