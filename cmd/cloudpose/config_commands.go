package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cloudpose/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	var initPath string
	var overwrite bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(initPath)
			if target == "" {
				target = strings.TrimSpace(ctx.flags.config)
			}
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				target = defaultPath
			}
			expanded, err := config.ExpandPath(target)
			if err != nil {
				return err
			}
			if _, err := os.Stat(expanded); err == nil && !overwrite {
				return fmt.Errorf("config file %s already exists (use --overwrite to replace)", expanded)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat config: %w", err)
			}
			if err := config.CreateSample(expanded); err != nil {
				return err
			}
			printStatus(cmd, "Config", statusOK, "wrote "+expanded)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&initPath, "path", "p", "", "Destination (defaults to --config or ~/.config/cloudpose/config.toml)")
	initCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := ctx.configPath
			if source == "" {
				source = "defaults"
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"valid":    true,
					"source":   source,
					"base_url": cfg.Pose.BaseURL,
				})
			}
			printStatus(cmd, "Config", statusOK, source)
			printStatus(cmd, "Pose service", statusInfo, cfg.Pose.BaseURL)
			printStatus(cmd, "Timeout", statusInfo, timeoutLabel(cfg))
			printStatus(cmd, "Log directory", statusInfo, cfg.Paths.LogDir)
			printStatus(cmd, "History", statusInfo, cfg.HistoryPath())
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, cfg)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	configCmd.AddCommand(initCmd, validateCmd, showCmd)
	return configCmd
}

func timeoutLabel(cfg *config.Config) string {
	if timeout := cfg.PoseTimeout(); timeout > 0 {
		return timeout.String()
	}
	return "none"
}
