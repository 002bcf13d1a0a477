package internal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFilename lists meme files the catalog must never offer, in
// gitignore syntax.
const IgnoreFilename = ".barwatchignore"

type IgnoreMatcher struct {
	patterns []gitignore.Pattern
	basePath string
}

func NewIgnoreMatcher(dir string) (*IgnoreMatcher, error) {
	patterns, err := parseIgnoreFile(filepath.Join(dir, IgnoreFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return &IgnoreMatcher{
		patterns: patterns,
		basePath: dir,
	}, nil
}

// Match reports whether path, absolute or relative to the catalog
// directory, is ignored. Later patterns override earlier ones.
func (m *IgnoreMatcher) Match(path string) bool {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(m.basePath, path)
		if err != nil {
			return false
		}
		path = rel
	}

	parts := strings.Split(filepath.ToSlash(path), "/")

	ignored := false
	for _, p := range m.patterns {
		switch p.Match(parts, false) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}

func (m *IgnoreMatcher) Len() int {
	return len(m.patterns)
}

func parseIgnoreFile(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}
