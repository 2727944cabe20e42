package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.WorkspaceDir == c.Paths.OutputDir {
		return errors.New("paths.workspace_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if err := ensurePositiveMap(map[string]int{
		"jobs.max_concurrency":   c.Jobs.MaxConcurrency,
		"jobs.download_timeout":  c.Jobs.DownloadTimeout,
		"jobs.transcode_timeout": c.Jobs.TranscodeTimeout,
	}); err != nil {
		return err
	}
	if c.Jobs.RetryLimit < 0 {
		return errors.New("jobs.retry_limit must be >= 0")
	}
	if c.Jobs.KillGrace < 0 {
		return errors.New("jobs.kill_grace must be >= 0")
	}
	if strings.ContainsAny(c.Jobs.DefaultFormat, `/\ `) {
		return fmt.Errorf("jobs.default_format %q is not a container extension", c.Jobs.DefaultFormat)
	}
	for _, code := range c.Jobs.TransientExitCodes {
		if code <= 0 {
			return fmt.Errorf("jobs.transient_exit_codes: %d is not a failure code", code)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return errors.New("notifications.ntfy_topic must be an http(s) URL")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
