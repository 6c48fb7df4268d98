// Package worker implements the long-lived control loop that claims,
// executes, and settles transcode jobs. Each worker is an independent OS
// process; the loop itself is single-threaded and blocks only during the
// encoder subprocess and the idle sleep.
package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/plexify-media/plexify/internal/job"
	"github.com/plexify-media/plexify/internal/queue"
)

// Executor is the transcode backend consumed by the loop. Satisfied by
// *ffmpeg.Executor; narrowed to an interface so the loop is testable with a
// stub.
type Executor interface {
	Process(ctx context.Context, j *job.Job) error
	MoveToDestination(j *job.Job) error
	DisableSourceFiles(j *job.Job) error
}

// Config holds the loop's timing and scheduling knobs.
type Config struct {
	// SleepInterval is the idle wait when no job is available.
	SleepInterval time.Duration
	// JobCooldown is the delay after a failed job before the next claim.
	JobCooldown time.Duration
	// Priority selects the claim ordering.
	Priority queue.Priority
	// ShowProgress renders the idle wait as a progress bar on stderr.
	ShowProgress bool
}

// Worker drains a queue until its context is cancelled.
type Worker struct {
	queue *queue.Queue
	exec  Executor
	cfg   Config
}

// New returns a worker claiming from q and executing with exec.
func New(q *queue.Queue, exec Executor, cfg Config) *Worker {
	return &Worker{queue: q, exec: exec, cfg: cfg}
}

// Run is the worker loop. It has no terminal state other than cancellation:
// a clean shutdown always either completes or returns the job in flight
// before exiting.
func (w *Worker) Run(ctx context.Context) error {
	logrus.WithField("pending_dir", w.queue.PendingDir).Info("worker started, watching for jobs")

	for {
		if ctx.Err() != nil {
			logrus.Info("shutdown signal received, exiting")
			return nil
		}

		processed, err := w.processNext(ctx)
		switch {
		case err != nil:
			// Structural queue errors (root unreachable, unreadable
			// records). Back off rather than crash: the mount may come
			// back.
			logrus.WithError(err).Error("error processing job")
			w.wait(ctx, w.cfg.JobCooldown, false)
		case processed:
			// Check immediately for more work.
		default:
			w.wait(ctx, w.cfg.SleepInterval, w.cfg.ShowProgress)
		}
	}
}

// processNext claims and runs one job. It reports whether a job was
// claimed; execution failure returns the job to pending and is not an
// error of the loop itself.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	claimed, err := w.queue.Claim(w.cfg.Priority)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		return false, nil
	}

	log := logrus.WithFields(logrus.Fields{"job": claimed.Job.ID, "input": claimed.Job.InputPath})
	log.Info("claimed job")

	if err := w.exec.Process(ctx, claimed.Job); err != nil {
		log.WithError(err).Error("conversion failed")
		w.settleFailed(claimed)
		w.wait(ctx, w.cfg.JobCooldown, false)
		return true, nil
	}

	if err := w.exec.MoveToDestination(claimed.Job); err != nil {
		log.WithError(err).Error("failed to move output to destination")
		w.settleFailed(claimed)
		w.wait(ctx, w.cfg.JobCooldown, false)
		return true, nil
	}

	if claimed.Job.Post.DisableSourceFiles {
		if err := w.exec.DisableSourceFiles(claimed.Job); err != nil {
			// The conversion itself succeeded; leaving sources enabled
			// is recoverable by hand.
			log.WithError(err).Warn("failed to disable source files")
		}
	}

	if err := claimed.Complete(); err != nil {
		return true, err
	}
	log.Info("completed job")
	return true, nil
}

// settleFailed returns a job to pending after a failed attempt. Settling
// errors are logged, not propagated: the stale-job sweep will eventually
// recover a record stuck in in_progress.
func (w *Worker) settleFailed(claimed *queue.ClaimedJob) {
	if err := claimed.ReturnToPending(); err != nil {
		logrus.WithField("job", claimed.Job.ID).WithError(err).Error("failed to return job to pending")
	}
}

// wait sleeps for d, interruptible by cancellation. Idle waits longer than
// five seconds render a progress bar so an operator can see the worker is
// alive and merely idle.
func (w *Worker) wait(ctx context.Context, d time.Duration, showProgress bool) {
	if d <= 0 {
		return
	}
	seconds := int(d / time.Second)
	if !showProgress || seconds <= 5 {
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
		return
	}

	bar := progressbar.NewOptions(seconds,
		progressbar.OptionSetDescription("waiting for jobs"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for i := 0; i < seconds; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

// CheckDeps verifies the external encoder and probe binaries are available
// before the loop starts. Missing tools are a structural failure surfaced
// to the operator.
func CheckDeps(lookPath func(string) (string, error)) error {
	var missing []string
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return errors.New("required tools not found on PATH: " + strings.Join(missing, ", "))
	}
	return nil
}
