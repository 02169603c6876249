package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePose()
	c.normalizeLogging()
	if err := c.normalizeLoadTest(); err != nil {
		return err
	}
	return c.normalizeUI()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePose() {
	if value, ok := os.LookupEnv(EnvBaseURL); ok && strings.TrimSpace(value) != "" {
		c.Pose.BaseURL = value
	}
	c.Pose.BaseURL = strings.TrimRight(strings.TrimSpace(c.Pose.BaseURL), "/")
	if c.Pose.BaseURL == "" {
		c.Pose.BaseURL = defaultPoseBaseURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeLoadTest() error {
	lt := &c.LoadTest
	if strings.TrimSpace(lt.ImageDir) == "" {
		lt.ImageDir = defaultLoadTestImageDir
	}
	var err error
	if lt.ImageDir, err = expandPath(strings.TrimSpace(lt.ImageDir)); err != nil {
		return fmt.Errorf("loadtest.image_dir: %w", err)
	}
	if lt.Users <= 0 {
		lt.Users = defaultLoadTestUsers
	}
	if lt.SpawnRate <= 0 {
		lt.SpawnRate = defaultLoadTestSpawnRate
	}
	if lt.DurationSeconds <= 0 {
		lt.DurationSeconds = defaultLoadTestDuration
	}
	if lt.MaxUsers <= 0 {
		lt.MaxUsers = defaultLoadTestMaxUsers
	}
	if lt.UserStep <= 0 {
		lt.UserStep = defaultLoadTestUserStep
	}
	return nil
}

func (c *Config) normalizeUI() error {
	if strings.TrimSpace(c.UI.ImageDir) == "" {
		c.UI.ImageDir = defaultUIImageDir
	}
	var err error
	if c.UI.ImageDir, err = expandPath(strings.TrimSpace(c.UI.ImageDir)); err != nil {
		return fmt.Errorf("ui.image_dir: %w", err)
	}
	return nil
}
