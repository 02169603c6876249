package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cloudpose/internal/config"
	"cloudpose/internal/history"
	"cloudpose/internal/loadtest"
	"cloudpose/internal/logging"
	"cloudpose/internal/preflight"
	"cloudpose/internal/services"
)

type loadTestFlags struct {
	users     int
	spawnRate int
	duration  time.Duration
	dir       string
	search    bool
	maxUsers  int
	userStep  int
	csvPath   string
	seed      uint64
}

func newLoadTestCommand(ctx *commandContext) *cobra.Command {
	var flags loadTestFlags

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive simulated users against the pose service",
		Long: `Spawn simulated users that alternate between the keypoints and annotated
endpoints with a random pause between requests. With --search the user count is
stepped up until a run stops reaching 100% success.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(true)
			if err != nil {
				return err
			}

			lock, err := loadtest.AcquireLock(cfg.LoadTestLockPath())
			if err != nil {
				if errors.Is(err, loadtest.ErrAlreadyRunning) {
					printStatus(cmd, "Load test", statusError, "another load test is running")
				}
				return err
			}
			defer lock.Release()

			dir := strings.TrimSpace(flags.dir)
			if dir == "" {
				dir = cfg.LoadTest.ImageDir
			}
			images, err := loadtest.LoadImages(dir, logger)
			if err != nil {
				return err
			}
			client, err := ctx.poseClient(logger)
			if err != nil {
				return err
			}
			if check := preflight.CheckPoseService(cmd.Context(), client); !check.Passed {
				printStatus(cmd, check.Name, statusError, check.Detail)
				return services.Wrap(services.ErrTransport, "loadtest", "preflight", check.Detail, nil)
			}
			runner, err := loadtest.NewRunner(client, images, logger)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			logger.Info("load test starting",
				logging.String("base_url", client.BaseURL()),
				logging.Int("images", len(images)),
				logging.Bool("search", flags.search),
			)

			if flags.search {
				return runSearch(cmd, ctx, runner, store, client.BaseURL(), loadtest.SearchOptions{
					Base:     opts,
					MaxUsers: pickInt(cmd, "max-users", flags.maxUsers, cfg.LoadTest.MaxUsers),
					UserStep: pickInt(cmd, "user-step", flags.userStep, cfg.LoadTest.UserStep),
				})
			}

			report, err := runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			run, err := store.Record(cmd.Context(), runFromReport(report, client.BaseURL(), history.ModeFixed))
			if err != nil {
				return err
			}
			if flags.csvPath != "" {
				if err := writeReportCSV(flags.csvPath, report); err != nil {
					return err
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, toRunJSON(run))
			}
			renderReport(cmd, report)
			printStatus(cmd, "Recorded", statusInfo, run.ID)
			return nil
		},
	}

	cmd.Flags().IntVarP(&flags.users, "users", "u", 0, "Number of simulated users (defaults to loadtest.users)")
	cmd.Flags().IntVarP(&flags.spawnRate, "spawn-rate", "r", 0, "Users started per second (defaults to loadtest.spawn_rate)")
	cmd.Flags().DurationVarP(&flags.duration, "duration", "t", 0, "Run length, e.g. 60s (defaults to loadtest.duration_seconds)")
	cmd.Flags().StringVarP(&flags.dir, "dir", "d", "", "Directory of request images (defaults to loadtest.image_dir)")
	cmd.Flags().BoolVar(&flags.search, "search", false, "Step the user count to find the highest level with full success")
	cmd.Flags().IntVar(&flags.maxUsers, "max-users", 0, "Upper bound for --search (defaults to loadtest.max_users)")
	cmd.Flags().IntVar(&flags.userStep, "user-step", 0, "Coarse step for --search (defaults to loadtest.user_step)")
	cmd.Flags().StringVar(&flags.csvPath, "csv", "", "Also write the report as CSV to this path")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "Fix the random source for reproducible runs")

	return cmd
}

func (f loadTestFlags) options(cmd *cobra.Command, cfg *config.Config) (loadtest.Options, error) {
	opts := loadtest.OptionsFromConfig(cfg)
	opts.Users = pickInt(cmd, "users", f.users, opts.Users)
	opts.SpawnRate = pickInt(cmd, "spawn-rate", f.spawnRate, opts.SpawnRate)
	if cmd.Flags().Changed("duration") {
		opts.Duration = f.duration
	}
	opts.Seed = f.seed
	if opts.Users <= 0 || opts.SpawnRate <= 0 || opts.Duration <= 0 {
		return opts, fmt.Errorf("users, spawn rate and duration must be positive (got %d, %d, %s)", opts.Users, opts.SpawnRate, opts.Duration)
	}
	return opts, nil
}

func pickInt(cmd *cobra.Command, name string, value, fallback int) int {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}

func runSearch(cmd *cobra.Command, ctx *commandContext, runner *loadtest.Runner, store *history.Store, baseURL string, opts loadtest.SearchOptions) error {
	result, err := runner.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}

	run := history.Run{
		BaseURL:         baseURL,
		Mode:            history.ModeSearch,
		SpawnRate:       opts.Base.SpawnRate,
		DurationSeconds: int(opts.Base.Duration / time.Second),
		MaxUsers:        result.MaxUsers,
		AvgResponseMS:   result.AvgResponseMS,
	}
	var requests, failures int64
	for i, step := range result.Steps {
		if i == 0 {
			run.StartedAt = step.Report.StartedAt
		}
		run.FinishedAt = step.Report.FinishedAt
		run.Users = step.Users
		requests += step.Report.Total.Requests
		failures += step.Report.Total.Failures
	}
	run.Requests = requests
	run.Failures = failures
	if requests > 0 {
		run.SuccessPercent = float64(requests-failures) / float64(requests) * 100
	}
	run, err = store.Record(cmd.Context(), run)
	if err != nil {
		return err
	}

	if ctx.jsonOutput() {
		steps := make([]searchStepJSON, 0, len(result.Steps))
		for _, step := range result.Steps {
			steps = append(steps, searchStepJSON{
				Users:          step.Users,
				SpawnRate:      step.SpawnRate,
				Requests:       step.Report.Total.Requests,
				Failures:       step.Report.Total.Failures,
				SuccessPercent: step.Report.Total.SuccessPercent(),
				AvgResponseMS:  step.Report.Total.AvgResponseMS(),
				Passed:         step.Passed,
			})
		}
		return writeJSON(cmd, map[string]any{
			"run":             toRunJSON(run),
			"max_users":       result.MaxUsers,
			"avg_response_ms": result.AvgResponseMS,
			"steps":           steps,
		})
	}

	rows := make([][]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		rows = append(rows, []string{
			strconv.Itoa(step.Users),
			strconv.Itoa(step.SpawnRate),
			loadtest.FormatCount(step.Report.Total.Requests),
			loadtest.FormatCount(step.Report.Total.Failures),
			fmt.Sprintf("%.2f%%", step.Report.Total.SuccessPercent()),
			loadtest.FormatMillis(step.Report.Total.AvgResponseMS()),
			yesNo(step.Passed),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
		title:   "Capacity search",
		headers: []string{"Users", "Spawn rate", "Requests", "Failures", "Success", "Avg ms", "Passed"},
		aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	}, rows))

	if result.MaxUsers == 0 {
		printStatus(cmd, "Max users", statusWarn, "no level reached 100% success")
	} else {
		printStatus(cmd, "Max users", statusOK, fmt.Sprintf("%d (avg %s ms)", result.MaxUsers, loadtest.FormatMillis(result.AvgResponseMS)))
	}
	printStatus(cmd, "Recorded", statusInfo, run.ID)
	return nil
}

type searchStepJSON struct {
	Users          int     `json:"users"`
	SpawnRate      int     `json:"spawn_rate"`
	Requests       int64   `json:"requests"`
	Failures       int64   `json:"failures"`
	SuccessPercent float64 `json:"success_percent"`
	AvgResponseMS  float64 `json:"avg_response_ms"`
	Passed         bool    `json:"passed"`
}

func runFromReport(report loadtest.Report, baseURL string, mode history.Mode) history.Run {
	return history.Run{
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		BaseURL:         baseURL,
		Mode:            mode,
		Users:           report.Users,
		SpawnRate:       report.SpawnRate,
		DurationSeconds: int(report.Duration / time.Second),
		Requests:        report.Total.Requests,
		Failures:        report.Total.Failures,
		SuccessPercent:  report.Total.SuccessPercent(),
		AvgResponseMS:   report.Total.AvgResponseMS(),
	}
}

func renderReport(cmd *cobra.Command, report loadtest.Report) {
	// Rows ends with the aggregate, which goes in the footer.
	all := report.Rows()
	cells := make([][]string, 0, len(all))
	for _, row := range all {
		cells = append(cells, []string{
			row.Name,
			row.Requests,
			row.Failures,
			row.SuccessPercent,
			row.AvgResponseMS,
			row.MinResponseMS,
			row.MaxResponseMS,
		})
	}
	title := fmt.Sprintf("%d users @ %d/s for %s", report.Users, report.SpawnRate, report.Duration)
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
		title:   title,
		headers: []string{"Name", "Requests", "Failures", "Success", "Avg ms", "Min ms", "Max ms"},
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		footer:  cells[len(cells)-1],
	}, cells[:len(cells)-1]))
}

func writeReportCSV(path string, report loadtest.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := report.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
