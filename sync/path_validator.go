package sync

import (
	"path/filepath"
	"strings"
)

// ValidatePath reports whether rel, joined onto root and lexically
// normalized, stays within root (spec.md 4.5.1's traversal-safety check),
// grounded on original_source's PathValidator::isPathWithinDirectory
// (absolute+lexically_normal+prefix check), adapted to Go's filepath.Abs
// and filepath.Clean which together provide the same lexical
// normalization without touching the filesystem.
func ValidatePath(root, rel string) (absPath string, ok bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absRoot = filepath.Clean(absRoot)

	joined := filepath.Join(absRoot, rel)
	normalized := filepath.Clean(joined)

	if normalized != absRoot && !strings.HasPrefix(normalized, absRoot+string(filepath.Separator)) {
		return "", false
	}
	return normalized, true
}
