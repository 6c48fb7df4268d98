// Package job defines the transcode job entity: fixed input/output paths,
// the quality and post-processing settings resolved at creation time, and
// the transient progress state used by the executor during a single attempt.
package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileType identifies the source container and its subtitle convention.
type FileType string

const (
	// FileTypeWebm is a WebM file with a required external .vtt subtitle.
	FileTypeWebm FileType = "webm"
	// FileTypeMkv is an MKV file with embedded subtitles.
	FileTypeMkv FileType = "mkv"
)

// QualitySettings carries the encoder parameters for one job. The values
// are opaque strings passed through to the encoder; the executor never
// consults ambient configuration, so two jobs enqueued under different
// presets stay reproducible regardless of which worker runs them.
type QualitySettings struct {
	Preset       string `json:"preset"`
	CRF          string `json:"crf"`
	AudioBitrate string `json:"audio_bitrate"`
}

// PostProcessingSettings controls source cleanup after a successful
// conversion.
type PostProcessingSettings struct {
	// DisableSourceFiles renames the input (and subtitle, if any) to
	// "<name>.<ext>.disabled" so media servers stop indexing them.
	DisableSourceFiles bool `json:"disable_source_files"`
}

// Progress is the executor's transient per-attempt resume state. It is
// rediscovered each run by probing the work folder and is deliberately
// never persisted in the job record; stale progress pointing at a file
// another worker is still writing would be worse than re-probing.
type Progress struct {
	Started                bool
	PartialOutputPath      string
	PartialDurationSeconds float64
}

// Job is one unit of transcode work. ID and the input/output path pair are
// fixed at creation and never change; only Progress is mutated, and only by
// the executor while the job is claimed.
type Job struct {
	ID           string                 `json:"id"`
	InputPath    string                 `json:"input_path"`
	OutputPath   string                 `json:"output_path"`
	SubtitlePath string                 `json:"subtitle_path,omitempty"`
	FileType     FileType               `json:"file_type"`
	Quality      QualitySettings        `json:"quality_settings"`
	Post         PostProcessingSettings `json:"post_processing"`

	Progress Progress `json:"-"`
}

// jobNamespace is the UUIDv5 namespace for job ids.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("plexify:job"))

// New creates a job for inputPath. The id is a UUID derived
// deterministically from the input path, so two scanners racing over the
// same file produce the same record name and the enqueue lock can
// deduplicate them. The output path is the input with its extension
// replaced by .mp4; WebM jobs additionally get the sibling .vtt subtitle
// path.
func New(inputPath string, ft FileType, qs QualitySettings, pp PostProcessingSettings) *Job {
	j := &Job{
		ID:         uuid.NewSHA1(jobNamespace, []byte(inputPath)).String(),
		InputPath:  inputPath,
		OutputPath: replaceExt(inputPath, ".mp4"),
		FileType:   ft,
		Quality:    qs,
		Post:       pp,
	}
	if ft == FileTypeWebm {
		j.SubtitlePath = replaceExt(inputPath, ".vtt")
	}
	return j
}

// Filename returns the queue record name for this job.
func (j *Job) Filename() string {
	return j.ID + ".job"
}

// Marshal serializes the job record. encoding/json emits struct fields in
// declaration order, so serialize → deserialize → serialize is
// byte-identical.
func (j *Job) Marshal() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job %s: %w", j.ID, err)
	}
	return data, nil
}

// Unmarshal parses a serialized job record.
func Unmarshal(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse job record: %w", err)
	}
	if j.ID == "" || j.InputPath == "" {
		return nil, fmt.Errorf("job record missing id or input_path")
	}
	return &j, nil
}

// OutputExists reports whether the final output file already exists.
func (j *Job) OutputExists() bool {
	_, err := os.Stat(j.OutputPath)
	return err == nil
}

// HasRequiredSubtitle reports whether the external subtitle needed by this
// job is present. MKV jobs use embedded subtitles and always pass.
func (j *Job) HasRequiredSubtitle() bool {
	if j.FileType != FileTypeWebm {
		return true
	}
	_, err := os.Stat(j.SubtitlePath)
	return err == nil
}

// FileTypeForPath maps a media file extension to its FileType.
func FileTypeForPath(path string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return FileTypeWebm, nil
	case ".mkv":
		return FileTypeMkv, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (only .webm and .mkv are supported)", path)
	}
}

// replaceExt swaps the file extension, keeping the directory and stem.
func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
