package loadtest

import (
	"context"
	"errors"
	"fmt"

	"cloudpose/internal/logging"
)

// VerifySpawnRate is used while refining the bracket found by coarse steps.
const VerifySpawnRate = 1

// SearchOptions bounds a capacity search. Base supplies duration, waits and the
// coarse spawn rate; Users in Base is ignored.
type SearchOptions struct {
	Base     Options
	MaxUsers int
	UserStep int
}

// SearchStep records one probe run.
type SearchStep struct {
	Users     int
	SpawnRate int
	Report    Report
	Passed    bool
}

// SearchResult is the outcome of a capacity search. MaxUsers is the largest
// user count that completed with every request succeeding.
type SearchResult struct {
	MaxUsers      int
	AvgResponseMS float64
	Steps         []SearchStep
}

// Search steps the user count by UserStep until a run falls below 100%
// success or MaxUsers is reached, then walks one user at a time from the last
// good level toward the first failing one.
func (r *Runner) Search(ctx context.Context, opts SearchOptions) (SearchResult, error) {
	if opts.UserStep <= 0 || opts.MaxUsers <= 0 {
		return SearchResult{}, errors.New("loadtest: search needs positive max users and step")
	}
	if opts.UserStep > opts.MaxUsers {
		return SearchResult{}, fmt.Errorf("loadtest: user step %d exceeds max users %d", opts.UserStep, opts.MaxUsers)
	}

	var result SearchResult
	probe := func(users, spawnRate int) (bool, error) {
		run := opts.Base
		run.Users = users
		run.SpawnRate = spawnRate
		report, err := r.run(ctx, run)
		if err != nil {
			return false, err
		}
		passed := report.Total.Requests > 0 && report.Total.Failures == 0
		result.Steps = append(result.Steps, SearchStep{Users: users, SpawnRate: spawnRate, Report: report, Passed: passed})
		r.logger.Info("search probe",
			logging.Int("users", users),
			logging.Int("spawn_rate", spawnRate),
			logging.Bool("passed", passed),
			logging.Float64("success_percent", report.Total.SuccessPercent()),
		)
		if passed {
			result.MaxUsers = users
			result.AvgResponseMS = report.Total.AvgResponseMS()
		}
		return passed, nil
	}

	low, high := 0, 0
	for users := opts.UserStep; users <= opts.MaxUsers; users += opts.UserStep {
		passed, err := probe(users, opts.Base.SpawnRate)
		if err != nil {
			return result, err
		}
		if !passed {
			high = users
			break
		}
		low = users
	}
	if high == 0 {
		return result, nil
	}

	for users := low + 1; users < high; users++ {
		passed, err := probe(users, VerifySpawnRate)
		if err != nil {
			return result, err
		}
		if !passed {
			break
		}
	}
	return result, nil
}
