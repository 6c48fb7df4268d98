package ffmpeg

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/plexify-media/plexify/internal/job"
)

// BuildTranscodeArgs constructs the complete encoder argument slice for one
// invocation. seekSeconds > 0 produces a resume continuation run: the seek
// offset is applied to every input so continuation video and subtitles stay
// aligned. Codec and quality arguments come only from the job itself.
func BuildTranscodeArgs(j *job.Job, outputPath string, seekSeconds float64, background bool) []string {
	args := make([]string, 0, 40)
	args = appendNice(args, background)

	// --- Preamble ---
	args = append(args, "ffmpeg",
		"-fflags", "+genpts",
		"-avoid_negative_ts", "make_zero",
	)

	// --- Inputs and stream maps ---
	switch j.FileType {
	case job.FileTypeWebm:
		args = appendSeek(args, seekSeconds)
		args = append(args, "-i", j.InputPath)
		args = appendSeek(args, seekSeconds)
		args = append(args, "-i", j.SubtitlePath)
		args = append(args, "-map", "0:v:0", "-map", "0:a:0", "-map", "1:s:0")
	case job.FileTypeMkv:
		args = append(args, "-fix_sub_duration")
		args = appendSeek(args, seekSeconds)
		args = append(args, "-i", j.InputPath)
		args = append(args, "-map", "0:v:0", "-map", "0:a:0", "-map", "0:s:0")
	}

	// --- Codecs and quality (from the job record, never ambient config) ---
	args = append(args,
		"-c:v", "libx264",
		"-preset", j.Quality.Preset,
		"-crf", j.Quality.CRF,
		"-c:a", "aac",
		"-b:a", j.Quality.AudioBitrate,
		"-c:s", "mov_text",
		"-y",
		outputPath,
	)
	return args
}

// BuildConcatArgs constructs the stream-copy concatenation pass joining the
// files named in the concat list. No re-encoding touches the already
// finished segments.
func BuildConcatArgs(listPath, outputPath string, background bool) []string {
	args := appendNice(make([]string, 0, 12), background)
	return append(args, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	)
}

// appendSeek adds an input seek for resume runs. The offset is rendered
// with the shortest exact decimal form so the continuation starts at
// precisely the probed duration.
func appendSeek(args []string, seekSeconds float64) []string {
	if seekSeconds <= 0 {
		return args
	}
	return append(args, "-ss", strconv.FormatFloat(seekSeconds, 'f', -1, 64))
}

// appendNice prefixes the command with a low scheduling priority for
// background workers.
func appendNice(args []string, background bool) []string {
	if !background {
		return args
	}
	return append(args, "nice", "-n", "19")
}

// writeConcatList writes an ffmpeg concat-demuxer list naming files in
// playback order. Single quotes inside paths are escaped per the demuxer's
// quoting rules.
func writeConcatList(listPath string, files ...string) error {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(f, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list %s: %w", listPath, err)
	}
	return nil
}
