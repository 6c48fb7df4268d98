package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/plexify-media/plexify/internal/job"
)

// Priority selects the secondary ordering applied over pending jobs before
// claim attempts. It is a scheduling hint computed from a snapshot; the
// atomicity guarantee comes from the claim rename alone.
type Priority string

const (
	// PriorityNone tries candidates in directory-listing order.
	PriorityNone Priority = "none"
	// PriorityEpisode tries series episodes in (series, season, episode)
	// order so a series finishes in order under low contention.
	PriorityEpisode Priority = "episode"
)

// ParsePriority validates a priority flag value.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityNone, PriorityEpisode:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("invalid priority %q (use 'none' or 'episode')", s)
	}
}

// candidate pairs a pending record name with its best-effort episode
// metadata.
type candidate struct {
	name string
	meta job.EpisodeMetadata
	ok   bool
}

// sortByEpisode re-ranks pending record names: jobs with episode metadata
// first, ordered by (series, season, episode) ascending; jobs without
// metadata keep their relative listing order after them. Records that
// cannot be read or parsed are treated as metadata-less rather than
// erroring — the sort only has to be useful, never perfect, because a
// concurrent worker may invalidate the snapshot at any time.
func (q *Queue) sortByEpisode(names []string) []string {
	candidates := make([]candidate, 0, len(names))
	for _, name := range names {
		c := candidate{name: name}
		if data, err := os.ReadFile(filepath.Join(q.PendingDir, name)); err == nil {
			if j, err := job.Unmarshal(data); err == nil {
				c.meta, c.ok = job.ParseEpisodeMetadata(j.InputPath)
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, k int) bool {
		a, b := candidates[i], candidates[k]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false // both metadata-less: keep listing order
		}
		if a.meta.SeriesName != b.meta.SeriesName {
			return a.meta.SeriesName < b.meta.SeriesName
		}
		if a.meta.SeasonNumber != b.meta.SeasonNumber {
			return a.meta.SeasonNumber < b.meta.SeasonNumber
		}
		return a.meta.EpisodeNumber < b.meta.EpisodeNumber
	})

	sorted := make([]string, len(candidates))
	for i, c := range candidates {
		sorted[i] = c.name
	}
	return sorted
}
