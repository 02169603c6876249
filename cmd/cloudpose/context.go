package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"cloudpose/internal/config"
	"cloudpose/internal/controller"
	"cloudpose/internal/logging"
	"cloudpose/internal/services"
	"cloudpose/internal/services/posesvc"
)

type globalFlags struct {
	config  string
	baseURL string
	json    bool
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "cli", "load config", "", err)
			return
		}
		if override := strings.TrimRight(strings.TrimSpace(c.flags.baseURL), "/"); override != "" {
			cfg.Pose.BaseURL = override
			if err := cfg.Validate(); err != nil {
				c.configErr = services.Wrap(services.ErrConfiguration, "cli", "--base-url", "", err)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

// logger builds the command logger. Unless --verbose is set, logs go to the
// log file only so they never interleave with command output.
func (c *commandContext) logger(fileOnly bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if c.flags.verbose {
		fileOnly = false
	}
	logger, err := logging.NewFromConfig(cfg, fileOnly)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) poseClient(logger *slog.Logger) (*posesvc.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return posesvc.NewClient(posesvc.Config{
		BaseURL:        cfg.Pose.BaseURL,
		TimeoutSeconds: cfg.Pose.TimeoutSeconds,
	}, posesvc.WithLogger(logger)), nil
}

// newController wires a controller to the configured pose service.
func (c *commandContext) newController(fileOnlyLogs bool) (*controller.Controller, *slog.Logger, error) {
	logger, err := c.logger(fileOnlyLogs)
	if err != nil {
		return nil, nil, err
	}
	client, err := c.poseClient(logger)
	if err != nil {
		return nil, nil, err
	}
	return controller.New(client, controller.WithLogger(logger)), logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
