// Package queue implements the shared directory-backed job queue. Three
// sibling directories (pending, in_progress, completed) own disjoint sets
// of job records; every state transition is a single atomic filesystem
// operation, so multiple worker processes coordinate with no lock server,
// database, or network round-trip. The backing filesystem must preserve
// atomic rename semantics across directories on the same volume.
package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plexify-media/plexify/internal/job"
)

const (
	pendingDirName    = "pending"
	inProgressDirName = "in_progress"
	completedDirName  = "completed"

	recordExt = ".job"
	lockExt   = ".lock"
)

// Queue manages the job queue rooted at a shared directory, which may be a
// network mount.
type Queue struct {
	Root          string
	PendingDir    string
	InProgressDir string
	CompletedDir  string
}

// New returns a queue rooted at root. Call Init before any other operation.
func New(root string) *Queue {
	return &Queue{
		Root:          root,
		PendingDir:    filepath.Join(root, pendingDirName),
		InProgressDir: filepath.Join(root, inProgressDirName),
		CompletedDir:  filepath.Join(root, completedDirName),
	}
}

// Init idempotently ensures the three queue directories exist. Safe to call
// concurrently from many workers.
func (q *Queue) Init() error {
	for _, dir := range []string{q.PendingDir, q.InProgressDir, q.CompletedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue directory %s: %w", dir, err)
		}
	}
	return nil
}

// Enqueue creates the pending record for j, guarded by a lock directory.
// Directory creation is atomic and fails if the directory already exists,
// which turns "create the record only if nobody else is" into a single
// primitive: when the lock cannot be taken, another writer is already
// creating this record and Enqueue returns nil without writing.
func (q *Queue) Enqueue(j *job.Job) error {
	recordPath := filepath.Join(q.PendingDir, j.Filename())
	lockDir := recordPath + lockExt

	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			logrus.WithField("job", j.ID).Debug("job already being created, skipping enqueue")
			return nil
		}
		return fmt.Errorf("acquire enqueue lock for job %s: %w", j.ID, err)
	}

	data, err := j.Marshal()
	if err == nil {
		err = os.WriteFile(recordPath, data, 0o644)
	}

	// Lock removal is best effort: a leaked lock only risks a future
	// duplicate enqueue being silently skipped, never corruption.
	if rmErr := os.Remove(lockDir); rmErr != nil {
		logrus.WithField("job", j.ID).WithError(rmErr).Warn("could not remove enqueue lock")
	}

	if err != nil {
		return fmt.Errorf("write job record %s: %w", recordPath, err)
	}
	logrus.WithFields(logrus.Fields{"job": j.ID, "input": j.InputPath}).Debug("enqueued job")
	return nil
}

// JobExists reports whether the pending record for j exists.
func (q *Queue) JobExists(j *job.Job) bool {
	_, err := os.Stat(filepath.Join(q.PendingDir, j.Filename()))
	return err == nil
}

// Claim attempts to atomically take ownership of one pending job and never
// blocks. Candidates are tried in listing order, or in episode order when
// priority is PriorityEpisode. It returns (nil, nil) when no pending job
// could be claimed.
//
// The claim itself is a rename from pending to in_progress. Rename across
// directories on the same filesystem is atomic and fails without partial
// effect when the source is gone, which happens exactly when another worker
// already claimed the record. That failure is contention, not an error: the
// candidate is skipped silently. The filesystem serializing concurrent
// renames of the same path is the entire mutual-exclusion mechanism.
func (q *Queue) Claim(priority Priority) (*ClaimedJob, error) {
	names, err := q.listPending()
	if err != nil {
		return nil, err
	}
	if priority == PriorityEpisode {
		names = q.sortByEpisode(names)
	}

	for _, name := range names {
		pendingPath := filepath.Join(q.PendingDir, name)
		inProgressPath := filepath.Join(q.InProgressDir, name)

		if err := os.Rename(pendingPath, inProgressPath); err != nil {
			logrus.WithField("record", name).Debug("claim lost to another worker")
			continue
		}

		// Read back the just-renamed record as the authoritative payload;
		// the listing phase is not synchronized with writers.
		data, err := os.ReadFile(inProgressPath)
		if err != nil {
			return nil, fmt.Errorf("read claimed record %s: %w", inProgressPath, err)
		}
		j, err := job.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("claimed record %s: %w", inProgressPath, err)
		}

		logrus.WithField("job", j.ID).Debug("claimed job")
		return &ClaimedJob{queue: q, Job: j, name: name, inProgressPath: inProgressPath}, nil
	}
	return nil, nil
}

// PendingCount returns the number of pending job records.
func (q *Queue) PendingCount() (int, error) {
	names, err := q.listPending()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// RequeueStale renames in_progress records older than maxAge back to
// pending, recovering jobs stranded by a crashed worker. It runs as an
// explicit startup sweep rather than inside Claim, so the claim path stays
// a pure rename. maxAge <= 0 disables the sweep. Contention with another
// worker's sweep is tolerated the same way claims are.
func (q *Queue) RequeueStale(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(q.InProgressDir)
	if err != nil {
		return 0, fmt.Errorf("list in_progress directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	requeued := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		src := filepath.Join(q.InProgressDir, entry.Name())
		dst := filepath.Join(q.PendingDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			continue
		}
		logrus.WithField("record", entry.Name()).Warn("requeued stale in-progress job")
		requeued++
	}
	return requeued, nil
}

// Clean recursively removes all three queue directories. Used by cleanup
// tooling only, never by workers.
func (q *Queue) Clean() error {
	for _, dir := range []string{q.PendingDir, q.InProgressDir, q.CompletedDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove queue directory %s: %w", dir, err)
		}
	}
	return nil
}

// listPending returns the names of all pending job records in listing order.
func (q *Queue) listPending() ([]string, error) {
	entries, err := os.ReadDir(q.PendingDir)
	if err != nil {
		return nil, fmt.Errorf("list pending directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// ClaimedJob is the exclusive handle to a job in in_progress, obtained only
// via Claim. Complete and ReturnToPending consume the handle.
type ClaimedJob struct {
	queue          *Queue
	Job            *job.Job
	name           string
	inProgressPath string
	settled        bool
}

// Name returns the record name of the claimed job.
func (c *ClaimedJob) Name() string { return c.name }

// Complete atomically moves the record from in_progress to completed.
func (c *ClaimedJob) Complete() error {
	if err := c.settle(filepath.Join(c.queue.CompletedDir, c.name)); err != nil {
		return err
	}
	logrus.WithField("job", c.Job.ID).Debug("marked job completed")
	return nil
}

// ReturnToPending atomically moves the record back to pending, making it
// immediately claimable again. The persisted record is unchanged: resume
// progress is rediscovered from the work folder by the next claimer, not
// trusted from metadata.
func (c *ClaimedJob) ReturnToPending() error {
	if err := c.settle(filepath.Join(c.queue.PendingDir, c.name)); err != nil {
		return err
	}
	logrus.WithField("job", c.Job.ID).Warn("returned job to pending")
	return nil
}

func (c *ClaimedJob) settle(dst string) error {
	if c.settled {
		return fmt.Errorf("job %s already settled", c.Job.ID)
	}
	if err := os.Rename(c.inProgressPath, dst); err != nil {
		return fmt.Errorf("settle job %s: %w", c.Job.ID, err)
	}
	c.settled = true
	return nil
}
