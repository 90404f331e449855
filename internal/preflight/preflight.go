package preflight

import (
	"dropwatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	target := CheckTarget(cfg.Tracking)
	results = append(results, target)

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if target.Passed {
		results = append(results, CheckWatchMode(cfg))
	}

	return results
}
