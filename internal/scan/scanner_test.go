package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/plexify-media/plexify/internal/job"
	"github.com/plexify-media/plexify/internal/queue"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestScanner(t *testing.T, mediaRoot string) (*Scanner, *queue.Queue) {
	t.Helper()
	q := queue.New(t.TempDir())
	if err := q.Init(); err != nil {
		t.Fatal(err)
	}
	s := &Scanner{
		Queue:     q,
		MediaRoot: mediaRoot,
		Quality:   job.QualitySettings{Preset: "veryfast", CRF: "23", AudioBitrate: "128k"},
		Post:      job.PostProcessingSettings{DisableSourceFiles: true},
	}
	return s, q
}

func TestRun_DiscoversConvertibleFiles(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "Series", "Show A", "Season 01", "a.mkv"))
	writeFile(t, filepath.Join(root, "Series", "Show A", "Season 01", "b.webm"))
	writeFile(t, filepath.Join(root, "Series", "Show A", "Season 01", "b.vtt"))
	// WebM without its subtitle sibling is skipped, not an error.
	writeFile(t, filepath.Join(root, "Series", "Show B", "c.webm"))
	// Already-converted source.
	writeFile(t, filepath.Join(root, "Movies", "d.mkv"))
	writeFile(t, filepath.Join(root, "Movies", "d.mp4"))
	// Disabled sources and unrelated files never become candidates.
	writeFile(t, filepath.Join(root, "Movies", "e.mkv.disabled"))
	writeFile(t, filepath.Join(root, "Movies", "notes.txt"))

	s, q := newTestScanner(t, root)
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := Result{Added: 2, OutputExists: 1, MissingSubtitle: 1}
	if res != want {
		t.Errorf("Run() = %+v, want %+v", res, want)
	}
	if n, _ := q.PendingCount(); n != 2 {
		t.Errorf("pending count = %d, want 2", n)
	}
}

func TestRun_SecondScanReportsAlreadyQueued(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mkv"))
	writeFile(t, filepath.Join(root, "b.mkv"))

	s, _ := newTestScanner(t, root)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if res.Added != 0 || res.AlreadyQueued != 2 {
		t.Errorf("second scan = %+v, want 0 added, 2 already queued", res)
	}
}

func TestRun_IgnoreFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.mkv"))
	writeFile(t, filepath.Join(root, "skipme.mkv"))
	writeFile(t, filepath.Join(root, "Extras", "bonus.mkv"))

	s, q := newTestScanner(t, root)
	s.Ignore = &IgnoreFilter{patterns: []string{"Extras/", "skipme.mkv"}}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("added = %d, want only keep.mkv", res.Added)
	}
	if res.Ignored != 1 {
		t.Errorf("ignored = %d, want 1 (skipme.mkv)", res.Ignored)
	}
	if n, _ := q.PendingCount(); n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}
}

func TestAddFile_Outcomes(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "video.mkv")
	writeFile(t, input)

	s, _ := newTestScanner(t, root)

	outcome, err := s.AddFile(input, job.FileTypeMkv)
	if err != nil {
		t.Fatalf("AddFile() error: %v", err)
	}
	if outcome != Created {
		t.Fatalf("outcome = %v, want Created", outcome)
	}

	// Same file again: the pending record already exists.
	outcome, err = s.AddFile(input, job.FileTypeMkv)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != AlreadyQueued {
		t.Errorf("outcome = %v, want AlreadyQueued", outcome)
	}
}

func TestLoadIgnoreFilter(t *testing.T) {
	root := t.TempDir()

	f, err := LoadIgnoreFilter(root)
	if err != nil {
		t.Fatalf("LoadIgnoreFilter() with no file: %v", err)
	}
	if f.ShouldIgnore("anything.mkv") {
		t.Error("empty filter must not ignore anything")
	}

	content := "# comment\n\nExtras/\n*.sample.mkv\nexact.mkv\n"
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err = LoadIgnoreFilter(root)
	if err != nil {
		t.Fatalf("LoadIgnoreFilter() error: %v", err)
	}

	tests := []struct {
		rel  string
		want bool
	}{
		{"Extras", true},
		{"Extras/bonus.mkv", true},
		{"ExtrasMore/bonus.mkv", false},
		{"show.sample.mkv", true},
		{"Season 01/show.sample.mkv", true},
		{"exact.mkv", true},
		{"Season 01/regular.mkv", false},
	}
	for _, tt := range tests {
		if got := f.ShouldIgnore(tt.rel); got != tt.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}
