package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudpose/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the pose service and local directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(true)
			if err != nil {
				return err
			}
			client, err := ctx.poseClient(logger)
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, client)
			failed := preflight.Failed(results)
			if ctx.jsonOutput() {
				out := make([]map[string]any, 0, len(results))
				for _, r := range results {
					out = append(out, map[string]any{"name": r.Name, "passed": r.Passed, "detail": r.Detail})
				}
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					printStatus(cmd, r.Name, kind, r.Detail)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
