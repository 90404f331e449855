// Package main hosts the dropwatch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the tracker in the foreground (`run`),
// performs one-shot baseline scans, inspects and resets the durable
// known-file state, runs preflight checks, queries a running instance over
// its status API and scaffolds configuration. It centralizes configuration
// resolution and logger setup so subcommands can focus on presentation.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
