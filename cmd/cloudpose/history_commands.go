package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cloudpose/internal/history"
	"cloudpose/internal/loadtest"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded load-test runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				out := make([]runJSON, 0, len(runs))
				for _, run := range runs {
					out = append(out, toRunJSON(run))
				}
				return writeJSON(cmd, out)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No load-test runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
				title:   "Load-test history",
				headers: []string{"Started", "Mode", "Users", "Requests", "Failures", "Success", "Avg ms", "Max users", "Target"},
				aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			}, historyRows(runs)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int64{"removed": removed})
			}
			printStatus(cmd, "History", statusOK, fmt.Sprintf("removed %d run(s)", removed))
			return nil
		},
	})

	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		maxUsers := "-"
		if run.Mode == history.ModeSearch {
			maxUsers = strconv.Itoa(run.MaxUsers)
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(run.Mode),
			strconv.Itoa(run.Users),
			loadtest.FormatCount(run.Requests),
			loadtest.FormatCount(run.Failures),
			fmt.Sprintf("%.2f%%", run.SuccessPercent),
			loadtest.FormatMillis(run.AvgResponseMS),
			maxUsers,
			run.BaseURL,
		})
	}
	return rows
}

type runJSON struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	BaseURL         string    `json:"base_url"`
	Mode            string    `json:"mode"`
	Users           int       `json:"users"`
	SpawnRate       int       `json:"spawn_rate"`
	DurationSeconds int       `json:"duration_seconds"`
	Requests        int64     `json:"requests"`
	Failures        int64     `json:"failures"`
	SuccessPercent  float64   `json:"success_percent"`
	AvgResponseMS   float64   `json:"avg_response_ms"`
	MaxUsers        *int      `json:"max_users,omitempty"`
}

func toRunJSON(run history.Run) runJSON {
	out := runJSON{
		ID:              run.ID,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		BaseURL:         run.BaseURL,
		Mode:            string(run.Mode),
		Users:           run.Users,
		SpawnRate:       run.SpawnRate,
		DurationSeconds: run.DurationSeconds,
		Requests:        run.Requests,
		Failures:        run.Failures,
		SuccessPercent:  run.SuccessPercent,
		AvgResponseMS:   run.AvgResponseMS,
	}
	if run.Mode == history.ModeSearch {
		maxUsers := run.MaxUsers
		out.MaxUsers = &maxUsers
	}
	return out
}
