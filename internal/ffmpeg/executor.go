// Package ffmpeg invokes the external encoder for transcode jobs: argument
// building, subprocess execution with stderr capture, the duration probe,
// and resume-from-partial-output via segment concatenation.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/plexify-media/plexify/internal/job"
)

// ErrDestinationExists reports a finalization conflict: the destination
// file already exists from an unrelated run and is not overwritten.
var ErrDestinationExists = errors.New("destination file already exists")

// continuation and concat scratch files live beside the partial output.
const (
	continuationSuffix = ".part"
	concatListSuffix   = ".txt"
	mergedSuffix       = ".merged"
)

// runFunc executes one external command and returns its captured stderr.
// Swappable in tests so executor logic is exercised without real binaries.
type runFunc func(ctx context.Context, args []string) (string, error)

// probeFunc returns the duration of a media file in seconds.
type probeFunc func(ctx context.Context, path string) (float64, error)

// Executor runs full and resumed transcodes for claimed jobs. The work
// directory holds one partial/continuation set per job, keyed by job id,
// so concurrent jobs never share scratch paths and no locking is needed.
type Executor struct {
	workDir    string
	background bool
	run        runFunc
	probe      probeFunc
}

// NewExecutor returns an executor writing scratch output under workDir.
// background lowers the encoder's scheduling priority via nice.
func NewExecutor(workDir string, background bool) *Executor {
	return &Executor{
		workDir:    workDir,
		background: background,
		run:        runCommand,
		probe:      ProbeDuration,
	}
}

// WorkPath returns the scratch output path for a job, derived
// deterministically from the job id and the output filename.
func (e *Executor) WorkPath(j *job.Job) string {
	return filepath.Join(e.workDir, j.ID+"_"+filepath.Base(j.OutputPath))
}

// Process transcodes j, leaving the finished output at WorkPath(j). A
// usable partial output already in the work folder is resumed from its
// probed duration; otherwise the job runs fresh. The caller finalizes with
// MoveToDestination and, per the job's settings, DisableSourceFiles.
func (e *Executor) Process(ctx context.Context, j *job.Job) error {
	if !j.HasRequiredSubtitle() {
		return fmt.Errorf("job %s: required subtitle file not found: %s", j.ID, j.SubtitlePath)
	}
	if _, err := os.Stat(j.InputPath); err != nil {
		return fmt.Errorf("job %s: input file not found: %s", j.ID, j.InputPath)
	}
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return fmt.Errorf("create work folder %s: %w", e.workDir, err)
	}

	e.probePartial(ctx, j)
	j.Progress.Started = true

	if j.Progress.PartialDurationSeconds > 0 {
		return e.resume(ctx, j)
	}
	return e.freshRun(ctx, j)
}

// probePartial checks the work folder for a resumable partial output. A
// probe failure or non-positive duration marks the partial unusable: it is
// deleted and the job falls back to a fresh run.
func (e *Executor) probePartial(ctx context.Context, j *job.Job) {
	partial := e.WorkPath(j)
	if fi, err := os.Stat(partial); err != nil || fi.Size() == 0 {
		if err == nil {
			_ = os.Remove(partial)
		}
		return
	}

	dur, err := e.probe(ctx, partial)
	if err != nil || dur <= 0 {
		logrus.WithFields(logrus.Fields{"job": j.ID, "partial": partial}).
			Warn("unusable partial output, starting fresh")
		_ = os.Remove(partial)
		return
	}

	j.Progress.PartialOutputPath = partial
	j.Progress.PartialDurationSeconds = dur
}

// freshRun performs a single full transcode into the work folder.
func (e *Executor) freshRun(ctx context.Context, j *job.Job) error {
	out := e.WorkPath(j)
	logrus.WithFields(logrus.Fields{"job": j.ID, "input": j.InputPath}).Info("starting conversion")

	stderr, err := e.run(ctx, BuildTranscodeArgs(j, out, 0, e.background))
	if err != nil {
		return fmt.Errorf("job %s: ffmpeg failed for %s: %w\n%s", j.ID, j.InputPath, err, stderr)
	}
	return nil
}

// resume encodes a continuation segment seeked to the partial's probed
// duration, then stream-copy concatenates partial + continuation into the
// final work-folder output. On any failure the original partial file is
// left untouched so a future attempt can retry from the same point.
func (e *Executor) resume(ctx context.Context, j *job.Job) error {
	partial := j.Progress.PartialOutputPath
	continuation := partial + continuationSuffix
	listPath := partial + concatListSuffix
	merged := partial + mergedSuffix + filepath.Ext(partial)

	logrus.WithFields(logrus.Fields{
		"job":     j.ID,
		"resume":  partial,
		"seconds": j.Progress.PartialDurationSeconds,
	}).Info("resuming conversion from partial output")

	stderr, err := e.run(ctx, BuildTranscodeArgs(j, continuation, j.Progress.PartialDurationSeconds, e.background))
	if err != nil {
		_ = os.Remove(continuation)
		return fmt.Errorf("job %s: continuation encode failed: %w\n%s", j.ID, err, stderr)
	}

	if err := writeConcatList(listPath, partial, continuation); err != nil {
		_ = os.Remove(continuation)
		return fmt.Errorf("job %s: %w", j.ID, err)
	}
	defer os.Remove(listPath)

	stderr, err = e.run(ctx, BuildConcatArgs(listPath, merged, e.background))
	if err != nil {
		_ = os.Remove(continuation)
		_ = os.Remove(merged)
		return fmt.Errorf("job %s: concatenation failed: %w\n%s", j.ID, err, stderr)
	}

	if err := os.Rename(merged, partial); err != nil {
		return fmt.Errorf("job %s: replace partial with merged output: %w", j.ID, err)
	}
	_ = os.Remove(continuation)
	return nil
}

// MoveToDestination moves the finished work-folder output to the job's
// final output path. Already-created destination directories are fine; an
// existing destination file is a conflict and is never overwritten.
func (e *Executor) MoveToDestination(j *job.Job) error {
	src := e.WorkPath(j)
	dst := j.OutputPath

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory for %s: %w", dst, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("job %s: %w: %s", j.ID, ErrDestinationExists, dst)
	}
	if err := moveFile(src, dst); err != nil {
		return fmt.Errorf("job %s: move output to destination: %w", j.ID, err)
	}
	logrus.WithFields(logrus.Fields{"job": j.ID, "output": dst}).Info("conversion successful")
	return nil
}

// DisableSourceFiles renames the source input (and subtitle, if any) to
// "<name>.<ext>.disabled". A source that was already renamed by a prior
// partially completed finalization is not an error.
func (e *Executor) DisableSourceFiles(j *job.Job) error {
	if err := disableFile(j.InputPath); err != nil {
		return fmt.Errorf("job %s: disable input: %w", j.ID, err)
	}
	if j.SubtitlePath != "" {
		if err := disableFile(j.SubtitlePath); err != nil {
			return fmt.Errorf("job %s: disable subtitle: %w", j.ID, err)
		}
	}
	return nil
}

func disableFile(path string) error {
	disabled := path + ".disabled"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if _, err := os.Stat(disabled); err == nil {
			return nil // already renamed by a previous attempt
		}
		return fmt.Errorf("source file not found: %s", path)
	}
	return os.Rename(path, disabled)
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// work folder and destination are on different filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// runCommand executes args with stderr captured for diagnostics.
func runCommand(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}
