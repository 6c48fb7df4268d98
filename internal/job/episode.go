package job

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ContentType classifies what a parsed episode path points at.
type ContentType string

const (
	// ContentEpisode is a regular numbered episode inside a season folder.
	ContentEpisode ContentType = "episode"
	// ContentExtra is an episode filed under a season folder with an
	// extra-material suffix (e.g. "Season 01 - Extras").
	ContentExtra ContentType = "extra"
)

// EpisodeMetadata is derived on demand from a job's input path; it is never
// stored in the record. It exists only to let the priority selector finish
// a series in order under low contention.
type EpisodeMetadata struct {
	SeriesName    string
	SeasonNumber  int
	EpisodeNumber int
	ContentType   ContentType
}

var (
	// reEpisodeMarker matches SxxExx markers in a filename.
	reEpisodeMarker = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,3})`)

	// reSeasonDir matches "Season NN" directory names with an optional
	// " - <extra>" suffix.
	reSeasonDir = regexp.MustCompile(`(?i)^Season[ _.]?(\d{1,2})(\s*-\s*(.+))?$`)

	// reTVDBTag matches a "{tvdb-12345}" id, either as its own path
	// segment or as a suffix of the show folder name.
	reTVDBTag = regexp.MustCompile(`\{tvdb-[^}]*\}`)
)

// ParseEpisodeMetadata derives episode metadata from a media path laid out
// as Series/<show>[/{tvdb-id}]/Season NN[ - extra]/...SxxExx... Parsing
// failure is not an error: it returns ok=false, and such jobs simply sort
// after all jobs that do have metadata.
func ParseEpisodeMetadata(inputPath string) (EpisodeMetadata, bool) {
	segments := strings.Split(filepath.ToSlash(inputPath), "/")
	if len(segments) < 2 {
		return EpisodeMetadata{}, false
	}

	// Locate the Series root segment; everything of interest is below it.
	seriesIdx := -1
	for i, seg := range segments[:len(segments)-1] {
		if strings.EqualFold(seg, "Series") {
			seriesIdx = i
			break
		}
	}
	if seriesIdx < 0 || seriesIdx+1 >= len(segments)-1 {
		return EpisodeMetadata{}, false
	}

	show := strings.TrimSpace(reTVDBTag.ReplaceAllString(segments[seriesIdx+1], ""))
	if show == "" {
		return EpisodeMetadata{}, false
	}

	meta := EpisodeMetadata{SeriesName: show, ContentType: ContentEpisode}

	// Optional standalone {tvdb-id} segment and the season folder.
	for _, seg := range segments[seriesIdx+2 : len(segments)-1] {
		if reTVDBTag.MatchString(seg) && strings.TrimSpace(reTVDBTag.ReplaceAllString(seg, "")) == "" {
			continue
		}
		if m := reSeasonDir.FindStringSubmatch(seg); m != nil {
			meta.SeasonNumber = atoi(m[1])
			if m[3] != "" {
				meta.ContentType = ContentExtra
			}
		}
	}

	base := segments[len(segments)-1]
	m := reEpisodeMarker.FindStringSubmatch(base)
	if m == nil {
		return EpisodeMetadata{}, false
	}
	meta.EpisodeNumber = atoi(m[2])
	if meta.SeasonNumber == 0 {
		meta.SeasonNumber = atoi(m[1])
	}
	return meta, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
