package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plexify-media/plexify/internal/config"
	"github.com/plexify-media/plexify/internal/job"
	"github.com/plexify-media/plexify/internal/queue"
	"github.com/plexify-media/plexify/internal/scan"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var disableSources bool

	cmd := &cobra.Command{
		Use:   "scan <media_root>",
		Short: "Scan a directory tree and enqueue transcode jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaRoot := args[0]
			if err := requireDir(mediaRoot); err != nil {
				return err
			}

			scanner, q, err := buildScanner(opts, mediaRoot, disableSources)
			if err != nil {
				return err
			}
			if err := q.Init(); err != nil {
				return err
			}

			res, err := scanner.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Added %d new jobs (%d skipped: %d output exists, %d already queued, %d missing subtitle, %d ignored)\n",
				res.Added,
				res.OutputExists+res.AlreadyQueued+res.MissingSubtitle+res.Ignored,
				res.OutputExists, res.AlreadyQueued, res.MissingSubtitle, res.Ignored)
			return nil
		},
	}

	cmd.Flags().BoolVar(&disableSources, "disable-sources", true, "rename source files to .disabled after successful conversion")
	return cmd
}

// buildScanner wires a scanner with quality settings from --preset or the
// environment.
func buildScanner(opts *rootOptions, mediaRoot string, disableSources bool) (*scan.Scanner, *queue.Queue, error) {
	qs, err := resolveQuality(opts)
	if err != nil {
		return nil, nil, err
	}

	ignore, err := scan.LoadIgnoreFilter(mediaRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("load ignore file: %w", err)
	}

	q := queue.New(opts.workRoot(mediaRoot))
	scanner := &scan.Scanner{
		Queue:     q,
		MediaRoot: mediaRoot,
		Quality:   qs,
		Post:      job.PostProcessingSettings{DisableSourceFiles: disableSources},
		Ignore:    ignore,
	}
	return scanner, q, nil
}

func resolveQuality(opts *rootOptions) (job.QualitySettings, error) {
	if opts.preset != "" {
		return config.QualityPreset(opts.preset)
	}
	return config.Load().QualitySettings(), nil
}

func requireDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("media directory does not exist: %s", path)
	}
	if !fi.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
