package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePose(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateLoadTest()
}

func (c *Config) validatePose() error {
	parsed, err := url.Parse(c.Pose.BaseURL)
	if err != nil {
		return fmt.Errorf("pose.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("pose.base_url must use http or https, got %q", c.Pose.BaseURL)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("pose.base_url must include a host, got %q", c.Pose.BaseURL)
	}
	if c.Pose.TimeoutSeconds < 0 {
		return errors.New("pose.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateLoadTest() error {
	lt := c.LoadTest
	if lt.WaitMinMillis < 0 || lt.WaitMaxMillis < 0 {
		return errors.New("loadtest wait bounds must be zero or positive")
	}
	if lt.WaitMaxMillis < lt.WaitMinMillis {
		return errors.New("loadtest.wait_max_ms must be at least loadtest.wait_min_ms")
	}
	if lt.UserStep > lt.MaxUsers {
		return errors.New("loadtest.user_step must not exceed loadtest.max_users")
	}
	return nil
}
