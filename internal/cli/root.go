// Package cli builds the plexify command tree: scan, add, work, and clean.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Set at build time via -ldflags.
var (
	version = "dev"
)

type rootOptions struct {
	workDir string
	preset  string
	verbose bool
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "plexify",
		Short:         "A simple, distributed media transcoding CLI",
		Long:          "Converts .webm and .mkv files to .mp4 with subtitle support.\nWorkers coordinate through a shared directory-backed job queue, so any number\nof machines can process the same library with no broker or database.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.workDir, "work-dir", "", "queue and scratch root (default: the media root)")
	pf.StringVar(&opts.preset, "preset", "", "quality preset for new jobs: fast, balanced, quality (default: environment settings)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newAddCmd(opts))
	rootCmd.AddCommand(newWorkCmd(opts))
	rootCmd.AddCommand(newCleanCmd(opts))

	return rootCmd
}

// workRoot resolves the queue root: --work-dir when set, else the media
// root itself.
func (o *rootOptions) workRoot(mediaRoot string) string {
	if o.workDir != "" {
		return o.workDir
	}
	return mediaRoot
}
