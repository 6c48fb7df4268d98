package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is looked up at the media root.
const IgnoreFileName = ".plexifyignore"

// IgnoreFilter excludes paths from scanning. Patterns are one per line:
// literal path prefixes (directories end with "/") and filepath.Match
// globs tried against both the relative path and the basename. Lines
// starting with "#" are comments. This is deliberately not a gitignore
// implementation.
type IgnoreFilter struct {
	patterns []string
}

// LoadIgnoreFilter reads the ignore file under root. A missing file yields
// an empty filter, not an error.
func LoadIgnoreFilter(root string) (*IgnoreFilter, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &IgnoreFilter{}, nil
		}
		return nil, err
	}
	defer f.Close()

	filter := &IgnoreFilter{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		filter.patterns = append(filter.patterns, line)
	}
	return filter, sc.Err()
}

// ShouldIgnore reports whether the relative path matches any pattern.
func (f *IgnoreFilter) ShouldIgnore(relPath string) bool {
	if f == nil || len(f.patterns) == 0 {
		return false
	}
	rel := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)

	for _, p := range f.patterns {
		if dir, ok := strings.CutSuffix(p, "/"); ok {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
