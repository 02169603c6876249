package main

import (
	"errors"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"cloudpose/internal/tui"
)

func newUICommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive terminal interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) {
				return errors.New("the terminal UI needs an interactive terminal; use `cloudpose pose` or `cloudpose annotate` instead")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// Bubble Tea owns the screen, so logs always go to the file.
			ctx.flags.verbose = false
			ctrl, logger, err := ctx.newController(true)
			if err != nil {
				return err
			}
			imageDir := strings.TrimSpace(dir)
			if imageDir == "" {
				imageDir = cfg.UI.ImageDir
			}
			return tui.Run(cmd.Context(), ctrl, tui.Options{ImageDir: imageDir, Logger: logger})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to browse for images (defaults to ui.image_dir)")
	return cmd
}
