package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
}

// Tools names the external executables and how they are invoked.
type Tools struct {
	Downloader     string   `toml:"downloader"`
	Transcoder     string   `toml:"transcoder"`
	FormatSelector string   `toml:"format_selector"`
	SearchPrefix   string   `toml:"search_prefix"`
	DownloaderArgs []string `toml:"downloader_args"`
	TranscoderArgs []string `toml:"transcoder_args"`
}

// Jobs contains scheduling, timeout, and retry policy.
type Jobs struct {
	MaxConcurrency     int      `toml:"max_concurrency"`
	DownloadTimeout    int      `toml:"download_timeout"`
	TranscodeTimeout   int      `toml:"transcode_timeout"`
	RetryLimit         int      `toml:"retry_limit"`
	KillGrace          int      `toml:"kill_grace"`
	DiagnosticLines    int      `toml:"diagnostic_lines"`
	TransientExitCodes []int    `toml:"transient_exit_codes"`
	TransientHints     []string `toml:"transient_hints"`
	DefaultFormat      string   `toml:"default_format"`
	OverwriteExisting  bool     `toml:"overwrite_existing"`
}

// History controls the SQLite outcome ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobFailed      bool   `toml:"job_failed"`
	BatchCompleted bool   `toml:"batch_completed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for swc.
//
// Configuration sections by subsystem:
//   - Paths: workspace, output, and log directories
//   - Tools: downloader/transcoder executables and extra arguments
//   - Jobs: concurrency, per-stage timeouts, and retry policy
//   - History: SQLite outcome ledger
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Jobs          Jobs          `toml:"jobs"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("swc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories swc writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ResolveTools replaces the configured tool names with absolute executable
// paths. Stages receive these explicit locations and never consult PATH.
func (c *Config) ResolveTools() error {
	downloader, err := resolveExecutable(c.Tools.Downloader)
	if err != nil {
		return fmt.Errorf("tools.downloader: %w", err)
	}
	transcoder, err := resolveExecutable(c.Tools.Transcoder)
	if err != nil {
		return fmt.Errorf("tools.transcoder: %w", err)
	}
	c.Tools.Downloader = downloader
	c.Tools.Transcoder = transcoder
	return nil
}

func resolveExecutable(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("executable not configured")
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

// HistoryPath returns the SQLite ledger location.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// DownloadTimeout returns the per-attempt downloader timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Jobs.DownloadTimeout) * time.Second
}

// TranscodeTimeout returns the per-attempt transcoder timeout.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Jobs.TranscodeTimeout) * time.Second
}

// KillGrace is how long a signalled process gets before it is killed.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Jobs.KillGrace) * time.Second
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	encoder := toml.NewEncoder(&b)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
