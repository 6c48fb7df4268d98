package ffmpeg

import (
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/plexify-media/plexify/internal/job"
)

var testQuality = job.QualitySettings{Preset: "veryfast", CRF: "23", AudioBitrate: "128k"}

// argValue returns the argument following flag, or "" when absent.
func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func countFlag(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func TestBuildTranscodeArgs_Webm(t *testing.T) {
	j := job.New("/media/video.webm", job.FileTypeWebm, testQuality, job.PostProcessingSettings{})
	args := BuildTranscodeArgs(j, "/work/out.mp4", 0, false)

	if args[0] != "ffmpeg" {
		t.Errorf("args[0] = %q, want ffmpeg", args[0])
	}
	if countFlag(args, "-i") != 2 {
		t.Errorf("webm should have two inputs (media + vtt), got %d", countFlag(args, "-i"))
	}
	for _, m := range []string{"0:v:0", "0:a:0", "1:s:0"} {
		if !slices.Contains(args, m) {
			t.Errorf("missing stream map %q in %v", m, args)
		}
	}
	if slices.Contains(args, "-ss") {
		t.Error("fresh run must not seek")
	}
	if slices.Contains(args, "-fix_sub_duration") {
		t.Error("-fix_sub_duration is mkv-only")
	}
	if args[len(args)-1] != "/work/out.mp4" {
		t.Errorf("output path should be last, got %q", args[len(args)-1])
	}
}

func TestBuildTranscodeArgs_Mkv(t *testing.T) {
	j := job.New("/media/video.mkv", job.FileTypeMkv, testQuality, job.PostProcessingSettings{})
	args := BuildTranscodeArgs(j, "/work/out.mp4", 0, false)

	if countFlag(args, "-i") != 1 {
		t.Errorf("mkv should have one input, got %d", countFlag(args, "-i"))
	}
	if !slices.Contains(args, "-fix_sub_duration") {
		t.Error("mkv args should include -fix_sub_duration")
	}
	for _, m := range []string{"0:v:0", "0:a:0", "0:s:0"} {
		if !slices.Contains(args, m) {
			t.Errorf("missing stream map %q in %v", m, args)
		}
	}
}

func TestBuildTranscodeArgs_QualityFromJobOnly(t *testing.T) {
	j := job.New("/media/video.mkv", job.FileTypeMkv,
		job.QualitySettings{Preset: "slow", CRF: "19", AudioBitrate: "192k"},
		job.PostProcessingSettings{})
	args := BuildTranscodeArgs(j, "/work/out.mp4", 0, false)

	if got := argValue(args, "-preset"); got != "slow" {
		t.Errorf("-preset = %q, want %q", got, "slow")
	}
	if got := argValue(args, "-crf"); got != "19" {
		t.Errorf("-crf = %q, want %q", got, "19")
	}
	if got := argValue(args, "-b:a"); got != "192k" {
		t.Errorf("-b:a = %q, want %q", got, "192k")
	}
	if got := argValue(args, "-c:s"); got != "mov_text" {
		t.Errorf("-c:s = %q, want %q", got, "mov_text")
	}
}

func TestBuildTranscodeArgs_ResumeSeek(t *testing.T) {
	tests := []struct {
		name     string
		seek     float64
		wantSeek string
	}{
		{"whole seconds", 120, "120"},
		{"fractional seconds", 93.48, "93.48"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := job.New("/media/video.webm", job.FileTypeWebm, testQuality, job.PostProcessingSettings{})
			args := BuildTranscodeArgs(j, "/work/out.mp4.part", tt.seek, false)

			if got := argValue(args, "-ss"); got != tt.wantSeek {
				t.Errorf("-ss = %q, want %q", got, tt.wantSeek)
			}
			// Every input of a resume run is seeked, so subtitles stay
			// aligned with the continuation video.
			if got, want := countFlag(args, "-ss"), countFlag(args, "-i"); got != want {
				t.Errorf("%d -ss flags for %d inputs", got, want)
			}
		})
	}
}

func TestBuildTranscodeArgs_BackgroundNice(t *testing.T) {
	j := job.New("/media/video.mkv", job.FileTypeMkv, testQuality, job.PostProcessingSettings{})

	fg := BuildTranscodeArgs(j, "/work/out.mp4", 0, false)
	if fg[0] != "ffmpeg" {
		t.Errorf("foreground command = %q, want ffmpeg", fg[0])
	}

	bg := BuildTranscodeArgs(j, "/work/out.mp4", 0, true)
	if want := []string{"nice", "-n", "19", "ffmpeg"}; !slices.Equal(bg[:4], want) {
		t.Errorf("background prefix = %v, want %v", bg[:4], want)
	}
}

func TestBuildConcatArgs_StreamCopy(t *testing.T) {
	args := BuildConcatArgs("/work/list.txt", "/work/merged.mp4", false)

	if got := argValue(args, "-f"); got != "concat" {
		t.Errorf("-f = %q, want concat", got)
	}
	if got := argValue(args, "-c"); got != "copy" {
		t.Errorf("-c = %q, want copy (no re-encode pass)", got)
	}
	if got := argValue(args, "-i"); got != "/work/list.txt" {
		t.Errorf("-i = %q, want list path", got)
	}
	if args[len(args)-1] != "/work/merged.mp4" {
		t.Errorf("output should be last, got %q", args[len(args)-1])
	}
}

func TestWriteConcatList(t *testing.T) {
	listPath := t.TempDir() + "/list.txt"
	if err := writeConcatList(listPath, "/work/partial.mp4", "/work/it's.part"); err != nil {
		t.Fatalf("writeConcatList() error: %v", err)
	}
	raw, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatal(err)
	}
	data := string(raw)
	want := "file '/work/partial.mp4'\nfile '/work/it'\\''s.part'\n"
	if data != want {
		t.Errorf("concat list = %q, want %q", data, want)
	}
	if !strings.HasPrefix(data, "file '/work/partial.mp4'") {
		t.Error("partial file must come first in the concat list")
	}
}
