package cli

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/plexify-media/plexify/internal/config"
	"github.com/plexify-media/plexify/internal/ffmpeg"
	"github.com/plexify-media/plexify/internal/queue"
	"github.com/plexify-media/plexify/internal/worker"
)

// workFolderName is the scratch directory for partial and continuation
// output, under the work root next to the queue directories.
const workFolderName = "_work"

func newWorkCmd(opts *rootOptions) *cobra.Command {
	var (
		background   bool
		priorityFlag string
	)

	cmd := &cobra.Command{
		Use:   "work <media_root>",
		Short: "Process transcode jobs from the queue until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaRoot := args[0]
			if err := requireDir(mediaRoot); err != nil {
				return err
			}
			priority, err := queue.ParsePriority(priorityFlag)
			if err != nil {
				return err
			}
			if err := worker.CheckDeps(exec.LookPath); err != nil {
				return err
			}

			cfg := config.Load()
			workRoot := opts.workRoot(mediaRoot)

			q := queue.New(workRoot)
			if err := q.Init(); err != nil {
				return err
			}

			// Recover jobs stranded in in_progress by crashed workers
			// before claiming anything new.
			if n, err := q.RequeueStale(cfg.StaleJobTimeout); err != nil {
				return err
			} else if n > 0 {
				logrus.WithField("count", n).Warn("requeued stale jobs from a previous run")
			}

			mode := "power worker (foreground)"
			if background {
				mode = "low priority worker"
			}
			logrus.WithField("mode", mode).Info("starting worker")

			exe := ffmpeg.NewExecutor(filepath.Join(workRoot, workFolderName), background)
			w := worker.New(q, exe, worker.Config{
				SleepInterval: cfg.SleepInterval,
				JobCooldown:   cfg.JobCooldown,
				Priority:      priority,
				ShowProgress:  !background,
			})
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&background, "background", false, "run the encoder at low scheduling priority")
	cmd.Flags().StringVar(&priorityFlag, "priority", string(queue.PriorityNone),
		fmt.Sprintf("claim ordering: %s or %s", queue.PriorityNone, queue.PriorityEpisode))
	return cmd
}
