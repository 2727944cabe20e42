package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// skipConfigAnnotation marks commands that must run without a loadable
// configuration, such as `config init`.
const skipConfigAnnotation = "swc.skip-config"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	ctx := &commandContext{opts: opts}

	root := &cobra.Command{
		Use:   "swc",
		Short: "Download and convert media with yt-dlp and ffmpeg",
		Long: "swc fetches media with an external downloader, converts it with an external\n" +
			"transcoder and delivers one artifact per source, running jobs concurrently\n" +
			"up to jobs.max_concurrency.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Override logging.format (console, json)")

	root.AddCommand(
		newConvertCommand(ctx),
		newHistoryCommand(ctx),
		newDoctorCommand(ctx),
		newCleanCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
