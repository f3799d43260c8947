package watch

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions are the source file extensions that trigger a restart.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// DefaultExclude are path substrings that never trigger a restart.
var DefaultExclude = []string{
	"node_modules",
	".git",
	"dist",
	"build",
	".next",
	"coverage",
	".cache",
	"artifacts",
}

// Filter decides whether a changed path is relevant. Matching is by plain
// substring, so "dist" also excludes "distance.ts".
type Filter struct {
	Extensions []string
	Exclude    []string
}

// DefaultFilter returns a Filter with DefaultExtensions and DefaultExclude.
func DefaultFilter() Filter {
	return Filter{
		Extensions: append([]string(nil), DefaultExtensions...),
		Exclude:    append([]string(nil), DefaultExclude...),
	}
}

// ShouldRestart reports whether a change to path should restart the pair:
// not a directory, a watched extension, and no excluded substring.
func (f Filter) ShouldRestart(path string, isDir bool) bool {
	if isDir {
		return false
	}
	if !f.hasExtension(path) {
		return false
	}
	return !f.Excluded(path)
}

// Excluded reports whether path contains any exclude substring.
func (f Filter) Excluded(path string) bool {
	for _, pattern := range f.Exclude {
		if pattern != "" && strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// hasExtension matches the suffix of the base name. A dotfile such as ".js"
// has no extension.
func (f Filter) hasExtension(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return false
	}
	for _, e := range f.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
