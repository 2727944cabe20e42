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
	c.normalizeTools()
	c.normalizeJobs()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("SWC_DOWNLOADER"); ok && strings.TrimSpace(value) != "" {
		c.Tools.Downloader = value
	}
	if value, ok := os.LookupEnv("SWC_TRANSCODER"); ok && strings.TrimSpace(value) != "" {
		c.Tools.Transcoder = value
	}
	c.Tools.Downloader = strings.TrimSpace(c.Tools.Downloader)
	if c.Tools.Downloader == "" {
		c.Tools.Downloader = defaultDownloader
	}
	c.Tools.Transcoder = strings.TrimSpace(c.Tools.Transcoder)
	if c.Tools.Transcoder == "" {
		c.Tools.Transcoder = defaultTranscoder
	}
	c.Tools.FormatSelector = strings.TrimSpace(c.Tools.FormatSelector)
	if c.Tools.FormatSelector == "" {
		c.Tools.FormatSelector = defaultFormatSelector
	}
	c.Tools.SearchPrefix = strings.TrimSpace(c.Tools.SearchPrefix)
	c.Tools.DownloaderArgs = trimArgs(c.Tools.DownloaderArgs)
	c.Tools.TranscoderArgs = trimArgs(c.Tools.TranscoderArgs)
}

func (c *Config) normalizeJobs() {
	if c.Jobs.DiagnosticLines <= 0 {
		c.Jobs.DiagnosticLines = defaultDiagnosticLines
	}
	c.Jobs.DefaultFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Jobs.DefaultFormat)), ".")
	if c.Jobs.DefaultFormat == "" {
		c.Jobs.DefaultFormat = defaultFormat
	}
	hints := c.Jobs.TransientHints[:0]
	for _, hint := range c.Jobs.TransientHints {
		hint = strings.ToLower(strings.TrimSpace(hint))
		if hint != "" {
			hints = append(hints, hint)
		}
	}
	c.Jobs.TransientHints = hints
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("SWC_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
