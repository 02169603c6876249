package preflight

import (
	"context"

	"cloudpose/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes every preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config, probe HealthProber) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckImageDirectory("Load-test images", cfg.LoadTest.ImageDir),
	}
	if probe != nil {
		results = append(results, CheckPoseService(ctx, probe))
	}
	return results
}
