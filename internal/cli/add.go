package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/plexify-media/plexify/internal/job"
	"github.com/plexify-media/plexify/internal/scan"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	var disableSources bool

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Enqueue a transcode job for a single media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("file does not exist: %s", path)
			}
			ft, err := job.FileTypeForPath(path)
			if err != nil {
				return err
			}

			mediaRoot := filepath.Dir(path)
			scanner, q, err := buildScanner(opts, mediaRoot, disableSources)
			if err != nil {
				return err
			}
			if err := q.Init(); err != nil {
				return err
			}

			outcome, err := scanner.AddFile(path, ft)
			if err != nil {
				return err
			}
			switch outcome {
			case scan.Created:
				fmt.Printf("Queued job for %s\n", path)
			case scan.OutputExists:
				return fmt.Errorf("output already exists for %s", path)
			case scan.AlreadyQueued:
				return fmt.Errorf("job already queued for %s", path)
			case scan.MissingSubtitle:
				return fmt.Errorf("missing required subtitle file for %s", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&disableSources, "disable-sources", true, "rename source files to .disabled after successful conversion")
	return cmd
}
