package sync

import (
	"path/filepath"
	"strings"
)

// defaultIgnoreDirs are the hard-coded directory names (VCS directories,
// build artifacts) ignored before any user-configured glob (spec.md 4.5.1);
// editor temp/swap file suffixes are checked in matchesHardcodedDefaults.
var defaultIgnoreDirs = []string{".git", ".hg", ".svn", "node_modules", "target", "build", "dist"}

// IgnoreFilter drops file events matching either the hard-coded defaults
// or a user-configured glob pattern list, in that order.
type IgnoreFilter struct {
	userPatterns []string
}

func NewIgnoreFilter(userPatterns []string) *IgnoreFilter {
	return &IgnoreFilter{userPatterns: userPatterns}
}

// Match reports whether relPath should be ignored.
func (f *IgnoreFilter) Match(relPath string) bool {
	if matchesHardcodedDefaults(relPath) {
		return true
	}
	base := filepath.Base(relPath)
	for _, pat := range f.userPatterns {
		if ok, _ := filepath.Match(pat, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

func matchesHardcodedDefaults(relPath string) bool {
	if strings.Contains(relPath, ".git/") || strings.HasPrefix(relPath, ".git") {
		return true
	}
	if strings.HasSuffix(relPath, "~") || strings.HasSuffix(relPath, ".swp") {
		return true
	}
	slashed := filepath.ToSlash(relPath)
	for _, part := range strings.Split(slashed, "/") {
		for _, dir := range defaultIgnoreDirs {
			if part == dir {
				return true
			}
		}
	}
	return false
}
