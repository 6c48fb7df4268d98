// Package scan discovers candidate media files under a media root and
// enqueues transcode jobs for them. It sits entirely upstream of the queue
// protocol: it produces jobs and contains no concurrency or recovery logic.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/plexify-media/plexify/internal/job"
	"github.com/plexify-media/plexify/internal/queue"
)

// Outcome describes what happened for one candidate file.
type Outcome int

const (
	// Created means a job was enqueued.
	Created Outcome = iota
	// OutputExists means the converted output is already present.
	OutputExists
	// AlreadyQueued means a pending record for this file already exists.
	AlreadyQueued
	// MissingSubtitle means a WebM file lacks its required .vtt sibling.
	MissingSubtitle
)

// Result aggregates a scan run.
type Result struct {
	Added           int
	OutputExists    int
	AlreadyQueued   int
	MissingSubtitle int
	Ignored         int
}

// Scanner walks a media root and enqueues jobs for convertible files.
// Quality and post-processing settings are resolved once at construction
// and stamped into every job it creates.
type Scanner struct {
	Queue     *queue.Queue
	MediaRoot string
	Quality   job.QualitySettings
	Post      job.PostProcessingSettings
	Ignore    *IgnoreFilter
}

// Run recursively scans the media root. Unsupported extensions are skipped
// silently; ignored paths, existing outputs, queued duplicates, and WebM
// files without subtitles are counted but do not stop the walk.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	var res Result
	logrus.WithField("root", s.MediaRoot).Info("recursively scanning all subdirectories for media files")

	err := filepath.WalkDir(s.MediaRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if s.Ignore != nil && s.Ignore.ShouldIgnore(s.rel(path)) && path != s.MediaRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".disabled") {
			return nil
		}

		ft, err := job.FileTypeForPath(path)
		if err != nil {
			return nil // not a media candidate
		}
		if s.Ignore != nil && s.Ignore.ShouldIgnore(s.rel(path)) {
			res.Ignored++
			return nil
		}

		outcome, err := s.AddFile(path, ft)
		if err != nil {
			return err
		}
		res.count(outcome)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", s.MediaRoot, err)
	}

	logrus.WithFields(logrus.Fields{
		"added":            res.Added,
		"output_exists":    res.OutputExists,
		"already_queued":   res.AlreadyQueued,
		"missing_subtitle": res.MissingSubtitle,
		"ignored":          res.Ignored,
	}).Info("scan finished")
	return res, nil
}

// AddFile creates and enqueues a job for one media file, applying the same
// skip rules as a full scan.
func (s *Scanner) AddFile(path string, ft job.FileType) (Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolve path %s: %w", path, err)
	}

	j := job.New(abs, ft, s.Quality, s.Post)

	if j.OutputExists() {
		logrus.WithField("input", abs).Debug("output already exists, skipping")
		return OutputExists, nil
	}
	if s.Queue.JobExists(j) {
		logrus.WithField("input", abs).Debug("job already queued, skipping")
		return AlreadyQueued, nil
	}
	if !j.HasRequiredSubtitle() {
		logrus.WithField("input", abs).Warn("skipping: missing subtitle file")
		return MissingSubtitle, nil
	}

	if err := s.Queue.Enqueue(j); err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"input": abs, "type": ft}).Info("queued job")
	return Created, nil
}

func (s *Scanner) rel(path string) string {
	rel, err := filepath.Rel(s.MediaRoot, path)
	if err != nil {
		return path
	}
	return rel
}

func (r *Result) count(o Outcome) {
	switch o {
	case Created:
		r.Added++
	case OutputExists:
		r.OutputExists++
	case AlreadyQueued:
		r.AlreadyQueued++
	case MissingSubtitle:
		r.MissingSubtitle++
	}
}
