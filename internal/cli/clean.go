package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexify-media/plexify/internal/queue"
)

func newCleanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <media_root>",
		Short: "Remove all queue directories and their job records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaRoot := args[0]
			if err := requireDir(mediaRoot); err != nil {
				return err
			}
			q := queue.New(opts.workRoot(mediaRoot))
			if err := q.Clean(); err != nil {
				return err
			}
			fmt.Println("Queue directories removed.")
			return nil
		},
	}
}
