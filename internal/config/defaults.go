package config

const (
	defaultConfigPath             = "~/.config/swc/config.toml"
	defaultWorkspaceDir           = "~/.local/share/swc/work"
	defaultOutputDir              = "~/swc"
	defaultLogDir                 = "~/.local/share/swc/logs"
	defaultDownloader             = "yt-dlp"
	defaultTranscoder             = "ffmpeg"
	defaultFormatSelector         = "webm[abr>0]/bestaudio/best"
	defaultSearchPrefix           = "ytsearch1:"
	defaultMaxConcurrency         = 2
	defaultStageTimeoutSeconds    = 1800
	defaultRetryLimit             = 1
	defaultKillGraceSeconds       = 5
	defaultDiagnosticLines        = 50
	defaultFormat                 = "mp3"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultDownloaderTransientErr = 1
)

var defaultTransientHints = []string{
	"timed out",
	"connection reset",
	"temporary failure in name resolution",
	"unable to download webpage",
	"http error 5",
	"http error 429",
	"remote end closed connection",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
		},
		Tools: Tools{
			Downloader:     defaultDownloader,
			Transcoder:     defaultTranscoder,
			FormatSelector: defaultFormatSelector,
			SearchPrefix:   defaultSearchPrefix,
		},
		Jobs: Jobs{
			MaxConcurrency:     defaultMaxConcurrency,
			DownloadTimeout:    defaultStageTimeoutSeconds,
			TranscodeTimeout:   defaultStageTimeoutSeconds,
			RetryLimit:         defaultRetryLimit,
			KillGrace:          defaultKillGraceSeconds,
			DiagnosticLines:    defaultDiagnosticLines,
			TransientExitCodes: []int{defaultDownloaderTransientErr},
			TransientHints:     append([]string(nil), defaultTransientHints...),
			DefaultFormat:      defaultFormat,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobFailed:      true,
			BatchCompleted: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
