package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"swc/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timeouts are kept short and the kill grace is trimmed so failure paths
// finish quickly. Options are applied in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Jobs.DownloadTimeout = 30
	cfgVal.Jobs.TranscodeTimeout = 30
	cfgVal.Jobs.KillGrace = 1
	cfgVal.History.Enabled = false
	cfgVal.Tools.DownloaderArgs = nil
	cfgVal.Tools.TranscoderArgs = nil

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithDownloader points the config at a downloader script body written into
// the temp bin directory.
func WithDownloader(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.Downloader = WriteScript(b.t, b.binDir(), "fake-downloader", body)
	}
}

// WithTranscoder points the config at a transcoder script body written into
// the temp bin directory.
func WithTranscoder(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.Transcoder = WriteScript(b.t, b.binDir(), "fake-transcoder", body)
	}
}

// WithConcurrency sets the scheduler slot count.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.MaxConcurrency = n
	}
}

// WithRetryLimit sets the number of extra download attempts.
func WithRetryLimit(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.RetryLimit = n
	}
}

// WithHistory enables the outcome ledger under the temp log directory.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
		b.cfg.History.Path = filepath.Join(b.baseDir, "logs", "history.db")
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default swc external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg"}
		}
		binDir := b.binDir()
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

func (b *configBuilder) binDir() string {
	return filepath.Join(b.baseDir, "bin")
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}

// WriteConfigFile encodes cfg as TOML next to its temp directories and
// returns the file path.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, []byte(encoded), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
